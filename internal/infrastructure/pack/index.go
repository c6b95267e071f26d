package pack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
)

var indexV2Magic = []byte{0xff, 't', 'O', 'c'}

const (
	fanoutSize  = 256 * 4
	trailerSize = 2 * object.IDSize
	largeFlag   = 1 << 31
)

// Index is a parsed .idx file: sorted object names and their pack offsets
type Index struct {
	Version      int
	PackChecksum object.ID

	fanout  [256]uint32
	ids     []object.ID
	offsets []uint64
	crcs    []uint32 // v2 only
}

// ParseIndex decodes a version 1 or version 2 pack index
func ParseIndex(data []byte) (*Index, error) {
	var (
		idx *Index
		err error
	)
	if bytes.HasPrefix(data, indexV2Magic) {
		idx, err = parseModern(data)
	} else {
		idx, err = parseV1(data)
	}
	if err != nil {
		return nil, err
	}
	if err := idx.validate(); err != nil {
		return nil, &domain.OpError{Op: "pack.parseindex", Kind: domain.KindCorrupt, Err: err}
	}
	return idx, nil
}

func parseModern(data []byte) (*Index, error) {
	if len(data) < 8 {
		return nil, corruptIndex(errors.New("truncated header"))
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != 2 {
		return nil, &domain.OpError{
			Op:   "pack.parseindex",
			Kind: domain.KindUnsupported,
			Err:  fmt.Errorf("pack index version %d: %w", version, domain.ErrUnsupported),
		}
	}
	return parseV2(data[8:])
}

func parseV1(data []byte) (*Index, error) {
	if len(data) < fanoutSize+trailerSize {
		return nil, corruptIndex(errors.New("truncated fan-out table"))
	}

	idx := &Index{Version: 1}
	readFanout(&idx.fanout, data)
	n := int(idx.fanout[255])
	body := data[fanoutSize:]

	const entrySize = 4 + object.IDSize
	if len(body) != n*entrySize+trailerSize {
		return nil, corruptIndex(fmt.Errorf("expected %d entries, file holds %d bytes", n, len(body)))
	}

	idx.ids = make([]object.ID, n)
	idx.offsets = make([]uint64, n)
	for i := 0; i < n; i++ {
		rec := body[i*entrySize:]
		idx.offsets[i] = uint64(binary.BigEndian.Uint32(rec))
		copy(idx.ids[i][:], rec[4:entrySize])
	}
	copy(idx.PackChecksum[:], body[n*entrySize:])

	return idx, nil
}

func parseV2(data []byte) (*Index, error) {
	if len(data) < fanoutSize+trailerSize {
		return nil, corruptIndex(errors.New("truncated fan-out table"))
	}

	idx := &Index{Version: 2}
	readFanout(&idx.fanout, data)
	n := int(idx.fanout[255])
	body := data[fanoutSize:]

	fixed := n * (object.IDSize + 4 + 4)
	if len(body) < fixed+trailerSize {
		return nil, corruptIndex(fmt.Errorf("expected %d entries, file holds %d bytes", n, len(body)))
	}

	names := body[:n*object.IDSize]
	crcs := body[n*object.IDSize : n*(object.IDSize+4)]
	small := body[n*(object.IDSize+4) : fixed]
	large := body[fixed : len(body)-trailerSize]
	if len(large)%8 != 0 {
		return nil, corruptIndex(fmt.Errorf("64-bit offset table has odd length %d", len(large)))
	}

	idx.ids = make([]object.ID, n)
	idx.offsets = make([]uint64, n)
	idx.crcs = make([]uint32, n)
	for i := 0; i < n; i++ {
		copy(idx.ids[i][:], names[i*object.IDSize:])
		idx.crcs[i] = binary.BigEndian.Uint32(crcs[i*4:])

		off := binary.BigEndian.Uint32(small[i*4:])
		if off&largeFlag == 0 {
			idx.offsets[i] = uint64(off)
			continue
		}
		slot := int(off &^ largeFlag)
		if (slot+1)*8 > len(large) {
			return nil, corruptIndex(fmt.Errorf("64-bit offset slot %d out of range", slot))
		}
		idx.offsets[i] = binary.BigEndian.Uint64(large[slot*8:])
	}
	copy(idx.PackChecksum[:], body[len(body)-trailerSize:])

	return idx, nil
}

func readFanout(dst *[256]uint32, data []byte) {
	for i := range dst {
		dst[i] = binary.BigEndian.Uint32(data[i*4:])
	}
}

func corruptIndex(err error) error {
	return &domain.OpError{Op: "pack.parseindex", Kind: domain.KindCorrupt, Err: err}
}

// validate checks the invariants lookups rely on: a non-decreasing
// fan-out table that agrees with strictly sorted ids
func (x *Index) validate() error {
	for b := 1; b < 256; b++ {
		if x.fanout[b] < x.fanout[b-1] {
			return fmt.Errorf("fan-out table decreases at byte %02x", b)
		}
	}
	for i, id := range x.ids {
		if i > 0 && x.ids[i-1].Compare(id) >= 0 {
			return fmt.Errorf("object names not strictly sorted at entry %d", i)
		}
		lo, hi := x.bucket(id[0])
		if i < lo || i >= hi {
			return fmt.Errorf("entry %d (%s) outside its fan-out bucket", i, id)
		}
	}
	return nil
}

// bucket returns the half-open range of entries whose first byte is b
func (x *Index) bucket(b byte) (int, int) {
	lo := 0
	if b > 0 {
		lo = int(x.fanout[b-1])
	}
	return lo, int(x.fanout[b])
}

// Count returns the number of objects in the pack
func (x *Index) Count() int {
	return len(x.ids)
}

// ID returns the i-th object name in sorted order
func (x *Index) ID(i int) object.ID {
	return x.ids[i]
}

// Offset returns the pack offset of the i-th object
func (x *Index) Offset(i int) uint64 {
	return x.offsets[i]
}

// CRC returns the stored CRC32 of the i-th entry; v1 indexes have none
func (x *Index) CRC(i int) (uint32, bool) {
	if x.crcs == nil {
		return 0, false
	}
	return x.crcs[i], true
}

// Lookup finds id with a binary search inside its fan-out bucket
func (x *Index) Lookup(id object.ID) (uint64, bool) {
	lo, hi := x.bucket(id[0])
	bucket := x.ids[lo:hi]
	i := sort.Search(len(bucket), func(i int) bool { return bucket[i].Compare(id) >= 0 })
	if i < len(bucket) && bucket[i] == id {
		return x.offsets[lo+i], true
	}
	return 0, false
}

// MatchPrefix returns all ids that begin with prefix
func (x *Index) MatchPrefix(prefix object.Prefix) []object.ID {
	lo, hi := prefix.Bounds()
	start, end := x.bucket(lo[0])
	bucket := x.ids[start:end]

	i := sort.Search(len(bucket), func(i int) bool { return bucket[i].Compare(lo) >= 0 })
	var out []object.ID
	for ; i < len(bucket) && bucket[i].Compare(hi) <= 0; i++ {
		if prefix.Matches(bucket[i]) {
			out = append(out, bucket[i])
		}
	}
	return out
}
