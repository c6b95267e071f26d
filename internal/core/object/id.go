package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"gitty.dev/cli/internal/core/domain"
)

const (
	// IDSize is the length of a SHA-1 object name in bytes.
	IDSize = 20

	// HexSize is the length of a full object name in hex characters.
	HexSize = IDSize * 2

	// MinPrefixLen is the shortest abbreviation accepted for lookup.
	MinPrefixLen = 4
)

// ID is a value object holding a SHA-1 object name
type ID [IDSize]byte

// ZeroID is the all-zero object name
var ZeroID ID

// ParseID parses a full 40 character hex object name
func ParseID(s string) (ID, error) {
	var id ID
	if len(s) != HexSize {
		return id, &domain.OpError{
			Op:   "object.parseid",
			Kind: domain.KindInvalidID,
			Err:  fmt.Errorf("%q: expected %d hex characters, got %d", s, HexSize, len(s)),
		}
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ZeroID, &domain.OpError{Op: "object.parseid", Kind: domain.KindInvalidID, Err: fmt.Errorf("%q: %w", s, err)}
	}
	return id, nil
}

// MustParseID is ParseID for constants and tests; it panics on bad input
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IDFromBytes copies a raw 20 byte object name
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, &domain.OpError{
			Op:   "object.idfrombytes",
			Kind: domain.KindInvalidID,
			Err:  fmt.Errorf("expected %d bytes, got %d", IDSize, len(b)),
		}
	}
	copy(id[:], b)
	return id, nil
}

// String returns the lowercase hex form
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first n hex characters
func (id ID) Short(n int) string {
	s := id.String()
	if n <= 0 || n > len(s) {
		return s
	}
	return s[:n]
}

// IsZero reports whether id is the all-zero name
func (id ID) IsZero() bool {
	return id == ZeroID
}

// Compare orders ids bytewise
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Prefix is an abbreviated object name. Odd lengths match on the high
// nibble of the final byte.
type Prefix struct {
	raw  string
	full []byte
	odd  bool
}

// ParsePrefix validates an abbreviated object name of 4 to 40 hex characters
func ParsePrefix(s string) (Prefix, error) {
	if len(s) < MinPrefixLen || len(s) > HexSize {
		return Prefix{}, &domain.OpError{
			Op:   "object.parseprefix",
			Kind: domain.KindInvalidID,
			Err:  fmt.Errorf("%q: length must be between %d and %d", s, MinPrefixLen, HexSize),
		}
	}

	s = strings.ToLower(s)
	padded := s
	odd := len(s)%2 == 1
	if odd {
		padded += "0"
	}

	full, err := hex.DecodeString(padded)
	if err != nil {
		return Prefix{}, &domain.OpError{Op: "object.parseprefix", Kind: domain.KindInvalidID, Err: fmt.Errorf("%q: %w", s, err)}
	}

	return Prefix{raw: s, full: full, odd: odd}, nil
}

// String returns the normalized hex form of the prefix
func (p Prefix) String() string {
	return p.raw
}

// Len returns the prefix length in hex characters
func (p Prefix) Len() int {
	return len(p.raw)
}

// FirstByte returns the leading byte, which selects the loose fan-out directory
func (p Prefix) FirstByte() byte {
	return p.full[0]
}

// Matches reports whether id begins with the prefix
func (p Prefix) Matches(id ID) bool {
	n := len(p.full)
	if !p.odd {
		return bytes.Equal(id[:n], p.full)
	}
	if !bytes.Equal(id[:n-1], p.full[:n-1]) {
		return false
	}
	return id[n-1]&0xf0 == p.full[n-1]
}

// Full reports whether the prefix names a complete object id
func (p Prefix) Full() (ID, bool) {
	if len(p.raw) != HexSize {
		return ZeroID, false
	}
	var id ID
	copy(id[:], p.full)
	return id, true
}

// Bounds returns the smallest and largest ids the prefix can match,
// for range scans over sorted id tables
func (p Prefix) Bounds() (lo, hi ID) {
	for i := range hi {
		hi[i] = 0xff
	}
	copy(lo[:], p.full)
	copy(hi[:], p.full)
	if p.odd {
		last := len(p.full) - 1
		hi[last] = p.full[last] | 0x0f
	}
	return lo, hi
}
