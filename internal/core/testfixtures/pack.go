package testfixtures

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"hash/crc32"
	"sort"

	"gitty.dev/cli/internal/core/delta"
	"gitty.dev/cli/internal/core/object"
)

// Pack entry type codes for the two delta encodings
const (
	typeOfsDelta = 6
	typeRefDelta = 7
)

// PackEntry is a handle to an object added to a PackBuilder
type PackEntry struct {
	index int
	ID    object.ID
	Kind  object.Kind
	Data  []byte
}

type packEntry struct {
	PackEntry
	stored  int // pack type code
	base    int // ofs-delta base entry, -1 otherwise
	baseID  object.ID
	payload []byte // what is deflated into the pack
}

// PackBuilder assembles a version 2 pack file in memory
type PackBuilder struct {
	entries []*packEntry
	// LargeOffsets forces every v2 index offset into the 64-bit table
	LargeOffsets bool
	// CountOverride, when non-zero, is written as the pack header count
	CountOverride uint32
}

// NewPackBuilder creates an empty pack
func NewPackBuilder() *PackBuilder {
	return &PackBuilder{}
}

// Add stores a whole object
func (b *PackBuilder) Add(kind object.Kind, data []byte) PackEntry {
	e := &packEntry{
		PackEntry: PackEntry{index: len(b.entries), ID: object.Hash(kind, data), Kind: kind, Data: data},
		stored:    int(kind),
		base:      -1,
		payload:   data,
	}
	b.entries = append(b.entries, e)
	return e.PackEntry
}

// AddOfsDelta stores target as an offset delta against an earlier entry
func (b *PackBuilder) AddOfsDelta(base PackEntry, target []byte) PackEntry {
	e := &packEntry{
		PackEntry: PackEntry{index: len(b.entries), ID: object.Hash(base.Kind, target), Kind: base.Kind, Data: target},
		stored:    typeOfsDelta,
		base:      base.index,
		payload:   MakeDelta(base.Data, target),
	}
	b.entries = append(b.entries, e)
	return e.PackEntry
}

// AddRefDelta stores target as a delta against an object named by id;
// the base may live outside this pack
func (b *PackBuilder) AddRefDelta(baseID object.ID, kind object.Kind, baseData, target []byte) PackEntry {
	e := &packEntry{
		PackEntry: PackEntry{index: len(b.entries), ID: object.Hash(kind, target), Kind: kind, Data: target},
		stored:    typeRefDelta,
		base:      -1,
		baseID:    baseID,
		payload:   MakeDelta(baseData, target),
	}
	b.entries = append(b.entries, e)
	return e.PackEntry
}

// MakeDelta encodes target as a copy of the shared prefix with base
// followed by literal inserts
func MakeDelta(base, target []byte) []byte {
	d := delta.AppendSize(nil, uint64(len(base)))
	d = delta.AppendSize(d, uint64(len(target)))

	prefix := 0
	for prefix < len(base) && prefix < len(target) && base[prefix] == target[prefix] {
		prefix++
	}

	for off := 0; off < prefix; {
		n := min(prefix-off, 0xffff)
		d = append(d, 0x80|0x01|0x02|0x04|0x08|0x10|0x20,
			byte(off), byte(off>>8), byte(off>>16), byte(off>>24),
			byte(n), byte(n>>8))
		off += n
	}

	for rest := target[prefix:]; len(rest) > 0; {
		n := min(len(rest), 0x7f)
		d = append(d, byte(n))
		d = append(d, rest[:n]...)
		rest = rest[n:]
	}
	return d
}

// Build serializes the pack and an index of the requested version (1 or
// 2). It returns both files and the pack checksum.
func (b *PackBuilder) Build(indexVersion int) (pack, idx []byte, sum object.ID) {
	var buf bytes.Buffer
	buf.WriteString("PACK")
	count := uint32(len(b.entries))
	if b.CountOverride != 0 {
		count = b.CountOverride
	}
	_ = binary.Write(&buf, binary.BigEndian, uint32(2))
	_ = binary.Write(&buf, binary.BigEndian, count)

	offsets := make([]uint64, len(b.entries))
	crcs := make([]uint32, len(b.entries))

	for i, e := range b.entries {
		start := buf.Len()
		offsets[i] = uint64(start)

		buf.Write(entryHeader(e.stored, uint64(len(e.payload))))
		switch e.stored {
		case typeOfsDelta:
			buf.Write(encodeOfs(offsets[i] - offsets[e.base]))
		case typeRefDelta:
			buf.Write(e.baseID[:])
		}
		buf.Write(Compress(e.payload))

		crcs[i] = crc32.ChecksumIEEE(buf.Bytes()[start:])
	}

	packSum := sha1.Sum(buf.Bytes())
	buf.Write(packSum[:])
	copy(sum[:], packSum[:])

	return buf.Bytes(), b.index(indexVersion, offsets, crcs, sum), sum
}

func (b *PackBuilder) index(version int, offsets []uint64, crcs []uint32, packSum object.ID) []byte {
	order := make([]int, len(b.entries))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(x, y int) bool {
		return b.entries[order[x]].ID.Compare(b.entries[order[y]].ID) < 0
	})

	var fanout [256]uint32
	for _, i := range order {
		fanout[b.entries[i].ID[0]]++
	}
	for i := 1; i < 256; i++ {
		fanout[i] += fanout[i-1]
	}

	var buf bytes.Buffer
	be := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }

	if version == 1 {
		be(fanout)
		for _, i := range order {
			be(uint32(offsets[i]))
			buf.Write(b.entries[i].ID[:])
		}
	} else {
		buf.Write([]byte{0xff, 't', 'O', 'c'})
		be(uint32(2))
		be(fanout)
		for _, i := range order {
			buf.Write(b.entries[i].ID[:])
		}
		for _, i := range order {
			be(crcs[i])
		}
		var large []uint64
		for _, i := range order {
			if b.LargeOffsets || offsets[i] >= 1<<31 {
				be(uint32(1<<31) | uint32(len(large)))
				large = append(large, offsets[i])
				continue
			}
			be(uint32(offsets[i]))
		}
		for _, off := range large {
			be(off)
		}
	}

	buf.Write(packSum[:])
	idxSum := sha1.Sum(buf.Bytes())
	buf.Write(idxSum[:])
	return buf.Bytes()
}

// entryHeader encodes the 3-bit type and the size varint that starts
// every pack entry
func entryHeader(typ int, size uint64) []byte {
	b := byte(typ<<4) | byte(size&0x0f)
	size >>= 4
	var out []byte
	for size > 0 {
		out = append(out, b|0x80)
		b = byte(size & 0x7f)
		size >>= 7
	}
	return append(out, b)
}

// encodeOfs writes a base distance in the "+1 per continuation byte"
// form ofs-delta entries use
func encodeOfs(n uint64) []byte {
	var buf [10]byte
	pos := len(buf) - 1
	buf[pos] = byte(n & 0x7f)
	for n >>= 7; n > 0; n >>= 7 {
		n--
		pos--
		buf[pos] = 0x80 | byte(n&0x7f)
	}
	return buf[pos:]
}
