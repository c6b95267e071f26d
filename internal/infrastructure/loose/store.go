// Package loose reads zlib-compressed objects from the objects/xx/ fan-out.
package loose

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/ports"
	"gitty.dev/cli/internal/infrastructure/logging"
)

// maxHeaderLen bounds the "<kind> <size>\0" prefix; "commit" plus a
// 20 digit size fits comfortably
const maxHeaderLen = 32

// Store reads zlib-compressed objects from an objects/xx/yyyy... fan-out
// directory
type Store struct {
	dir    string
	logger zerolog.Logger
}

var (
	_ ports.ObjectBackend = (*Store)(nil)
	_ ports.LooseStats    = (*Store)(nil)
)

// NewStore creates a loose object store rooted at an objects directory
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{dir: dir, logger: logger.With().Str(logging.FieldBackend, "loose").Str("dir", dir).Logger()}
}

// Name identifies the backend
func (s *Store) Name() string {
	return "loose"
}

// Dir returns the objects directory this store reads
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file that holds id
func (s *Store) Path(id object.ID) string {
	h := id.String()
	return filepath.Join(s.dir, h[:2], h[2:])
}

// Contains reports whether id exists as a loose object
func (s *Store) Contains(_ context.Context, id object.ID) (bool, error) {
	_, err := os.Stat(s.Path(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &domain.OpError{Op: "loose.contains", Kind: domain.KindIO, Path: s.Path(id), Err: err}
}

// Read inflates and validates a loose object
func (s *Store) Read(ctx context.Context, id object.ID) (*object.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.Path(id)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &domain.OpError{Op: "loose.read", Kind: domain.KindNotFound, Path: path, Err: fmt.Errorf("%s: %w", id, domain.ErrNotFound)}
	}
	if err != nil {
		return nil, &domain.OpError{Op: "loose.read", Kind: domain.KindIO, Path: path, Err: err}
	}
	defer f.Close()

	kind, data, err := Decode(f)
	if err != nil {
		return nil, &domain.OpError{Op: "loose.read", Kind: domain.KindCorrupt, Path: path, Err: err}
	}

	s.logger.Debug().Str(logging.FieldEvent, "loose.read").Str(logging.FieldID, id.String()).Stringer("kind", kind).Int("size", len(data)).Msg("read loose object")

	return &object.Object{ID: id, Kind: kind, Size: int64(len(data)), Data: data}, nil
}

// Decode inflates a loose object stream and checks its header against
// the payload
func Decode(r io.Reader) (object.Kind, []byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return object.KindInvalid, nil, fmt.Errorf("zlib: %w", err)
	}
	defer zr.Close()

	br := bufio.NewReader(zr)
	kind, size, err := readHeader(br)
	if err != nil {
		return object.KindInvalid, nil, err
	}

	// the declared size is untrusted: read at most one byte past it
	limit := size
	if limit < math.MaxInt64 {
		limit++
	}
	data, err := io.ReadAll(io.LimitReader(br, limit))
	if err != nil {
		return object.KindInvalid, nil, fmt.Errorf("inflating payload: %w", err)
	}
	switch n := int64(len(data)); {
	case n < size:
		return object.KindInvalid, nil, fmt.Errorf("payload of %d bytes shorter than declared %d", n, size)
	case n > size:
		return object.KindInvalid, nil, fmt.Errorf("payload longer than declared %d bytes", size)
	}

	return kind, data, nil
}

func readHeader(br *bufio.Reader) (object.Kind, int64, error) {
	var header []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return object.KindInvalid, 0, fmt.Errorf("reading header: %w", err)
		}
		if b == 0 {
			break
		}
		header = append(header, b)
		if len(header) > maxHeaderLen {
			return object.KindInvalid, 0, errors.New("header too long")
		}
	}

	sp := -1
	for i, b := range header {
		if b == ' ' {
			sp = i
			break
		}
	}
	if sp < 0 {
		return object.KindInvalid, 0, fmt.Errorf("malformed header %q", header)
	}

	kind, err := object.ParseKind(string(header[:sp]))
	if err != nil {
		return object.KindInvalid, 0, err
	}
	size, err := strconv.ParseInt(string(header[sp+1:]), 10, 64)
	if err != nil || size < 0 {
		return object.KindInvalid, 0, fmt.Errorf("malformed size in header %q", header)
	}

	return kind, size, nil
}

// MatchPrefix scans only the fan-out directory the prefix selects
func (s *Store) MatchPrefix(ctx context.Context, prefix object.Prefix) ([]object.ID, error) {
	var matches []object.ID
	err := s.walkDir(ctx, prefix.FirstByte(), func(id object.ID) error {
		if prefix.Matches(id) {
			matches = append(matches, id)
		}
		return nil
	})
	return matches, err
}

// Walk visits every loose object id
func (s *Store) Walk(ctx context.Context, fn func(object.ID) error) error {
	for b := 0; b < 256; b++ {
		if err := s.walkDir(ctx, byte(b), fn); err != nil {
			return err
		}
	}
	return nil
}

// Stat reports the number of loose objects and their on-disk size
func (s *Store) Stat(ctx context.Context) (count int, bytes int64, err error) {
	err = s.Walk(ctx, func(id object.ID) error {
		info, err := os.Stat(s.Path(id))
		if err != nil {
			return &domain.OpError{Op: "loose.stat", Kind: domain.KindIO, Path: s.Path(id), Err: err}
		}
		count++
		bytes += info.Size()
		return nil
	})
	return count, bytes, err
}

func (s *Store) walkDir(ctx context.Context, first byte, fn func(object.ID) error) error {
	fanout := fmt.Sprintf("%02x", first)
	dir := filepath.Join(s.dir, fanout)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &domain.OpError{Op: "loose.walk", Kind: domain.KindIO, Path: dir, Err: err}
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := e.Name()
		if e.IsDir() || len(name) != object.HexSize-2 {
			continue
		}
		raw, err := hex.DecodeString(fanout + name)
		if err != nil {
			// tmp_obj_* and other stray files
			s.logger.Debug().Str(logging.FieldEvent, "loose.skip").Str("file", name).Msg("skipping non-object file")
			continue
		}
		id, _ := object.IDFromBytes(raw)
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}
