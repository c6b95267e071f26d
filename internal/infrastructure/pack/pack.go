package pack

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/core/delta"
	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/ports"
	"gitty.dev/cli/internal/infrastructure/logging"
)

// Pack entry type codes beyond the four object kinds
const (
	TypeOfsDelta = 6
	TypeRefDelta = 7
)

const (
	packHeaderSize = 12
	// maxEntryHeader covers a 10 byte size varint plus a 20 byte base id
	maxEntryHeader = 32
	maxDeltaChain  = 10000
)

// BaseResolver fetches a ref-delta base that is not in the same pack.
// It must pass ctx on so chain depth is counted across packs.
type BaseResolver func(ctx context.Context, id object.ID) (*object.Object, error)

// ErrChainTooLong marks a delta chain longer than maxDeltaChain links,
// including links followed through a BaseResolver
var ErrChainTooLong = errors.New("delta chain too long")

type chainDepthKey struct{}

// chainDepth is the number of delta links already followed by callers
// that reached this read through a BaseResolver
func chainDepth(ctx context.Context) int {
	n, _ := ctx.Value(chainDepthKey{}).(int)
	return n
}

// Pack is an open pack file together with its index
type Pack struct {
	name     string
	path     string
	file     *os.File
	size     int64
	index    *Index
	idxSize  int64
	cache    *BaseCache
	logger   zerolog.Logger
	resolver BaseResolver

	offsetsOnce sync.Once
	byOffset    map[uint64]object.ID
	sorted      []uint64
}

// Open opens pack-<sum>.pack next to the given index file and checks
// that the two agree
func Open(idxPath string, cache *BaseCache, logger zerolog.Logger) (*Pack, error) {
	data, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, &domain.OpError{Op: "pack.open", Kind: domain.KindIO, Path: idxPath, Err: err}
	}
	idx, err := ParseIndex(data)
	if err != nil {
		return nil, withPath(err, idxPath)
	}

	packPath := strings.TrimSuffix(idxPath, filepath.Ext(idxPath)) + ".pack"
	f, err := os.Open(packPath)
	if err != nil {
		kind := domain.KindIO
		if errors.Is(err, os.ErrNotExist) {
			kind = domain.KindNotFound
		}
		return nil, &domain.OpError{Op: "pack.open", Kind: kind, Path: packPath, Err: err}
	}

	p := &Pack{
		name:    filepath.Base(strings.TrimSuffix(packPath, ".pack")),
		path:    packPath,
		file:    f,
		index:   idx,
		idxSize: int64(len(data)),
		cache:   cache,
		logger:  logger.With().Str(logging.FieldBackend, "pack").Str("pack", filepath.Base(packPath)).Logger(),
	}
	if err := p.checkHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

func withPath(err error, path string) error {
	var oe *domain.OpError
	if errors.As(err, &oe) && oe.Path == "" {
		cp := *oe
		cp.Path = path
		return &cp
	}
	return err
}

func (p *Pack) checkHeader() error {
	info, err := p.file.Stat()
	if err != nil {
		return &domain.OpError{Op: "pack.open", Kind: domain.KindIO, Path: p.path, Err: err}
	}
	p.size = info.Size()

	var hdr [packHeaderSize]byte
	if _, err := p.file.ReadAt(hdr[:], 0); err != nil {
		return p.corrupt("pack.open", fmt.Errorf("reading header: %w", err))
	}
	if string(hdr[:4]) != "PACK" {
		return p.corrupt("pack.open", fmt.Errorf("bad signature %q", hdr[:4]))
	}
	if v := binary.BigEndian.Uint32(hdr[4:8]); v != 2 && v != 3 {
		return &domain.OpError{Op: "pack.open", Kind: domain.KindUnsupported, Path: p.path, Err: fmt.Errorf("pack version %d: %w", v, domain.ErrUnsupported)}
	}
	if n := binary.BigEndian.Uint32(hdr[8:12]); int(n) != p.index.Count() {
		return p.corrupt("pack.open", fmt.Errorf("pack holds %d objects, index lists %d", n, p.index.Count()))
	}
	return nil
}

func (p *Pack) corrupt(op string, err error) error {
	return &domain.OpError{Op: op, Kind: domain.KindCorrupt, Path: p.path, Err: err}
}

func (p *Pack) chainTooLong(op string, off uint64) error {
	return p.corrupt(op, fmt.Errorf("offset %d: more than %d links: %w", off, maxDeltaChain, ErrChainTooLong))
}

// Name returns the pack's base name, e.g. pack-1a2b...
func (p *Pack) Name() string { return p.name }

// Path returns the .pack file path
func (p *Pack) Path() string { return p.path }

// Size returns the .pack file size in bytes
func (p *Pack) Size() int64 { return p.size }

// IndexSize returns the .idx file size in bytes
func (p *Pack) IndexSize() int64 { return p.idxSize }

// Index exposes the parsed .idx
func (p *Pack) Index() *Index { return p.index }

// SetResolver installs the lookup used for ref-delta bases outside this pack
func (p *Pack) SetResolver(r BaseResolver) { p.resolver = r }

// Close releases the pack file
func (p *Pack) Close() error {
	return p.file.Close()
}

// Contains reports whether the index lists id
func (p *Pack) Contains(id object.ID) bool {
	_, ok := p.index.Lookup(id)
	return ok
}

// Read resolves the object named id
func (p *Pack) Read(ctx context.Context, id object.ID) (*object.Object, error) {
	off, ok := p.index.Lookup(id)
	if !ok {
		return nil, &domain.OpError{Op: "pack.read", Kind: domain.KindNotFound, Path: p.path, Err: fmt.Errorf("%s: %w", id, domain.ErrNotFound)}
	}

	kind, data, err := p.resolve(ctx, off)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().Str(logging.FieldEvent, "pack.read").Str(logging.FieldID, id.String()).Uint64("offset", off).Stringer("kind", kind).Int("size", len(data)).Msg("read packed object")

	return &object.Object{ID: id, Kind: kind, Size: int64(len(data)), Data: data}, nil
}

// entry is a decoded pack entry header
type entry struct {
	offset     uint64
	typ        int
	size       uint64 // inflated size of the stored payload
	dataOffset uint64
	baseOffset uint64    // ofs-delta
	baseID     object.ID // ref-delta
}

func (p *Pack) readEntry(off uint64) (entry, error) {
	if off < packHeaderSize || int64(off) >= p.size {
		return entry{}, p.corrupt("pack.entry", fmt.Errorf("offset %d outside pack of %d bytes", off, p.size))
	}

	var buf [maxEntryHeader]byte
	n, err := p.file.ReadAt(buf[:], int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return entry{}, &domain.OpError{Op: "pack.entry", Kind: domain.KindIO, Path: p.path, Err: err}
	}
	hdr := buf[:n]

	e := entry{offset: off}
	pos, err := parseTypeSize(hdr, &e)
	if err != nil {
		return entry{}, p.corrupt("pack.entry", fmt.Errorf("offset %d: %w", off, err))
	}

	switch e.typ {
	case int(object.KindCommit), int(object.KindTree), int(object.KindBlob), int(object.KindTag):
	case TypeOfsDelta:
		dist, used, err := parseOfs(hdr[pos:])
		if err != nil {
			return entry{}, p.corrupt("pack.entry", fmt.Errorf("offset %d: %w", off, err))
		}
		if dist == 0 || dist > off {
			return entry{}, p.corrupt("pack.entry", fmt.Errorf("offset %d: delta base distance %d out of range", off, dist))
		}
		e.baseOffset = off - dist
		pos += used
	case TypeRefDelta:
		if len(hdr[pos:]) < object.IDSize {
			return entry{}, p.corrupt("pack.entry", fmt.Errorf("offset %d: truncated base id", off))
		}
		copy(e.baseID[:], hdr[pos:pos+object.IDSize])
		pos += object.IDSize
	default:
		return entry{}, p.corrupt("pack.entry", fmt.Errorf("offset %d: invalid entry type %d", off, e.typ))
	}

	e.dataOffset = off + uint64(pos)
	return e, nil
}

// parseTypeSize decodes the 3-bit type and 4+7n bit size varint
func parseTypeSize(hdr []byte, e *entry) (int, error) {
	if len(hdr) == 0 {
		return 0, errors.New("truncated entry header")
	}
	c := hdr[0]
	e.typ = int(c>>4) & 0x07
	e.size = uint64(c & 0x0f)
	shift := uint(4)
	pos := 1
	for c&0x80 != 0 {
		if pos >= len(hdr) || shift > 60 {
			return 0, errors.New("malformed entry size")
		}
		c = hdr[pos]
		e.size |= uint64(c&0x7f) << shift
		shift += 7
		pos++
	}
	return pos, nil
}

// parseOfs decodes the ofs-delta base distance, where each continuation
// byte adds one before shifting
func parseOfs(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, errors.New("truncated base offset")
	}
	c := b[0]
	dist := uint64(c & 0x7f)
	pos := 1
	for c&0x80 != 0 {
		if pos >= len(b) || dist > (1<<56) {
			return 0, 0, errors.New("malformed base offset")
		}
		c = b[pos]
		dist = ((dist + 1) << 7) | uint64(c&0x7f)
		pos++
	}
	return dist, pos, nil
}

// inflate decompresses exactly size bytes starting at off
func (p *Pack) inflate(off, size uint64) ([]byte, error) {
	if int64(off) >= p.size {
		return nil, p.corrupt("pack.inflate", fmt.Errorf("data offset %d outside pack", off))
	}
	zr, err := zlib.NewReader(io.NewSectionReader(p.file, int64(off), p.size-int64(off)))
	if err != nil {
		return nil, p.corrupt("pack.inflate", fmt.Errorf("offset %d: %w", off, err))
	}
	defer zr.Close()

	if size > uint64(p.size)*1032 {
		// deflate cannot expand input by more than ~1032:1
		return nil, p.corrupt("pack.inflate", fmt.Errorf("offset %d: implausible size %d", off, size))
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, p.corrupt("pack.inflate", fmt.Errorf("offset %d: %w", off, err))
	}
	return out, nil
}

// resolve produces the final kind and payload for the entry at off,
// walking delta chains iteratively down to a whole object (or a cached
// intermediate) and then applying the deltas back up
func (p *Pack) resolve(ctx context.Context, off uint64) (object.Kind, []byte, error) {
	var (
		chain     []entry
		kind      object.Kind
		data      []byte
		fromCache bool
	)

	depth := chainDepth(ctx)
	cur := off
	for {
		if err := ctx.Err(); err != nil {
			return object.KindInvalid, nil, err
		}
		if depth+len(chain) > maxDeltaChain {
			return object.KindInvalid, nil, p.chainTooLong("pack.resolve", off)
		}

		if k, d, ok := p.cache.Get(p.name, cur); ok {
			kind, data, fromCache = k, d, true
			break
		}

		e, err := p.readEntry(cur)
		if err != nil {
			return object.KindInvalid, nil, err
		}

		if e.typ != TypeOfsDelta && e.typ != TypeRefDelta {
			kind = object.Kind(e.typ)
			if data, err = p.inflate(e.dataOffset, e.size); err != nil {
				return object.KindInvalid, nil, err
			}
			if len(chain) > 0 {
				p.cache.Put(p.name, cur, kind, data)
			}
			break
		}

		chain = append(chain, e)
		if e.typ == TypeOfsDelta {
			cur = e.baseOffset
			continue
		}

		if baseOff, ok := p.index.Lookup(e.baseID); ok {
			cur = baseOff
			continue
		}
		if p.resolver == nil {
			return object.KindInvalid, nil, p.corrupt("pack.resolve", fmt.Errorf("ref-delta base %s not in pack", e.baseID))
		}
		if depth+len(chain) > maxDeltaChain {
			return object.KindInvalid, nil, p.chainTooLong("pack.resolve", off)
		}
		base, err := p.resolver(context.WithValue(ctx, chainDepthKey{}, depth+len(chain)), e.baseID)
		if err != nil {
			// a runaway chain surfaces once, not wrapped at every hop
			var oe *domain.OpError
			if errors.Is(err, ErrChainTooLong) && errors.As(err, &oe) {
				return object.KindInvalid, nil, oe
			}
			return object.KindInvalid, nil, fmt.Errorf("resolving thin pack base %s: %w", e.baseID, err)
		}
		kind, data = base.Kind, base.Data
		break
	}

	for i := len(chain) - 1; i >= 0; i-- {
		e := chain[i]
		d, err := p.inflate(e.dataOffset, e.size)
		if err != nil {
			return object.KindInvalid, nil, err
		}
		if data, err = delta.Apply(data, d); err != nil {
			return object.KindInvalid, nil, withPath(err, p.path)
		}
		if i > 0 {
			p.cache.Put(p.name, e.offset, kind, data)
		}
	}

	if fromCache && len(chain) == 0 {
		data = bytes.Clone(data)
	}
	return kind, data, nil
}

// EntryInfo describes one stored entry for verify-pack style listings
type EntryInfo = ports.PackEntry

// Describe reports how id is stored
func (p *Pack) Describe(ctx context.Context, id object.ID) (EntryInfo, error) {
	off, ok := p.index.Lookup(id)
	if !ok {
		return EntryInfo{}, &domain.OpError{Op: "pack.describe", Kind: domain.KindNotFound, Path: p.path, Err: fmt.Errorf("%s: %w", id, domain.ErrNotFound)}
	}
	p.buildOffsetMap()

	info := EntryInfo{ID: id, Offset: off, PackedSize: p.packedSize(off)}

	e, err := p.readEntry(off)
	if err != nil {
		return EntryInfo{}, err
	}
	switch e.typ {
	case TypeOfsDelta:
		base := p.byOffset[e.baseOffset]
		info.Base = &base
	case TypeRefDelta:
		base := e.baseID
		info.Base = &base
	}

	// Depth counts deltas down to the first whole object in this pack.
	for cur := e; cur.typ == TypeOfsDelta || cur.typ == TypeRefDelta; info.Depth++ {
		next := cur.baseOffset
		if cur.typ == TypeRefDelta {
			var ok bool
			if next, ok = p.index.Lookup(cur.baseID); !ok {
				info.Depth++
				break
			}
		}
		if info.Depth > maxDeltaChain {
			return EntryInfo{}, p.chainTooLong("pack.describe", off)
		}
		if cur, err = p.readEntry(next); err != nil {
			return EntryInfo{}, err
		}
	}

	kind, data, err := p.resolve(ctx, off)
	if err != nil {
		return EntryInfo{}, err
	}
	info.Type = kind
	info.Size = int64(len(data))

	return info, nil
}

// Entries lists the pack's ids in pack order
func (p *Pack) Entries() []object.ID {
	p.buildOffsetMap()
	out := make([]object.ID, len(p.sorted))
	for i, off := range p.sorted {
		out[i] = p.byOffset[off]
	}
	return out
}

func (p *Pack) buildOffsetMap() {
	p.offsetsOnce.Do(func() {
		n := p.index.Count()
		p.byOffset = make(map[uint64]object.ID, n)
		p.sorted = make([]uint64, 0, n)
		for i := 0; i < n; i++ {
			p.byOffset[p.index.Offset(i)] = p.index.ID(i)
			p.sorted = append(p.sorted, p.index.Offset(i))
		}
		sort.Slice(p.sorted, func(a, b int) bool { return p.sorted[a] < p.sorted[b] })
	})
}

// packedSize is the distance to the next entry, or to the trailing
// checksum for the last one
func (p *Pack) packedSize(off uint64) uint64 {
	i := sort.Search(len(p.sorted), func(i int) bool { return p.sorted[i] > off })
	end := uint64(p.size) - object.IDSize
	if i < len(p.sorted) {
		end = p.sorted[i]
	}
	return end - off
}
