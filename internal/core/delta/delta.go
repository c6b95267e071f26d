// Package delta applies git's pack delta format.
//
// A delta is two size varints (source length, target length) followed by
// a stream of instructions:
//
//	copy:   1xxxxxxx [offset1..4] [size1..3]  copy a base range
//	insert: 0nnnnnnn <n literal bytes>        n in 1..127
//
// Each copy flag bit says whether that offset or size byte is present.
// A copy size of zero means 0x10000.
package delta

import (
	"errors"
	"fmt"

	"gitty.dev/cli/internal/core/domain"
)

// maxCopySize is the implied size of a copy instruction with no size bytes
const maxCopySize = 0x10000

var errTruncated = errors.New("truncated delta")

// ReadSize decodes a little-endian base-128 size from the start of buf.
// It returns the value and the number of bytes consumed.
func ReadSize(buf []byte) (uint64, int, error) {
	var (
		size  uint64
		shift uint
	)
	for i, b := range buf {
		if shift > 63 {
			return 0, 0, errors.New("size varint overflows 64 bits")
		}
		size |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return size, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, errTruncated
}

// AppendSize encodes size in the varint form ReadSize understands
func AppendSize(dst []byte, size uint64) []byte {
	for size >= 0x80 {
		dst = append(dst, byte(size)|0x80)
		size >>= 7
	}
	return append(dst, byte(size))
}

// Apply reconstructs the target object from base and delta. Malformed
// deltas are reported as corrupt errors, never as panics.
func Apply(base, delta []byte) ([]byte, error) {
	srcSize, n, err := ReadSize(delta)
	if err != nil {
		return nil, corrupt(err)
	}
	delta = delta[n:]
	if srcSize != uint64(len(base)) {
		return nil, corrupt(fmt.Errorf("base size mismatch: delta expects %d bytes, base has %d", srcSize, len(base)))
	}

	dstSize, n, err := ReadSize(delta)
	if err != nil {
		return nil, corrupt(err)
	}
	delta = delta[n:]
	if dstSize > uint64(len(delta))*maxCopySize+uint64(len(base)) {
		// Every instruction byte produces at most 0x10000 bytes.
		return nil, corrupt(fmt.Errorf("target size %d is impossible for a %d byte delta", dstSize, len(delta)))
	}

	out := make([]byte, 0, dstSize)

	for len(delta) > 0 {
		op := delta[0]
		delta = delta[1:]

		switch {
		case op&0x80 != 0:
			var offset, size uint64
			for bit := uint(0); bit < 7; bit++ {
				if op&(1<<bit) == 0 {
					continue
				}
				if len(delta) == 0 {
					return nil, corrupt(errTruncated)
				}
				if bit < 4 {
					offset |= uint64(delta[0]) << (8 * bit)
				} else {
					size |= uint64(delta[0]) << (8 * (bit - 4))
				}
				delta = delta[1:]
			}
			if size == 0 {
				size = maxCopySize
			}
			if offset+size > uint64(len(base)) {
				return nil, corrupt(fmt.Errorf("copy [%d,%d) exceeds base of %d bytes", offset, offset+size, len(base)))
			}
			if uint64(len(out))+size > dstSize {
				return nil, corrupt(errors.New("copy overruns target size"))
			}
			out = append(out, base[offset:offset+size]...)

		case op != 0:
			size := int(op)
			if len(delta) < size {
				return nil, corrupt(errTruncated)
			}
			if uint64(len(out)+size) > dstSize {
				return nil, corrupt(errors.New("insert overruns target size"))
			}
			out = append(out, delta[:size]...)
			delta = delta[size:]

		default:
			return nil, corrupt(errors.New("reserved opcode 0"))
		}
	}

	if uint64(len(out)) != dstSize {
		return nil, corrupt(fmt.Errorf("result is %d bytes, delta declares %d", len(out), dstSize))
	}
	return out, nil
}

func corrupt(err error) error {
	return &domain.OpError{Op: "delta.apply", Kind: domain.KindCorrupt, Err: err}
}
