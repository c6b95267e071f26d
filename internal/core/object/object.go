package object

import (
	"crypto/sha1"
	"fmt"
	"io"
	"strconv"

	"gitty.dev/cli/internal/core/domain"
)

// Object is an undecoded object as read from any backend
type Object struct {
	ID   ID
	Kind Kind
	Size int64
	Data []byte
}

// New builds an Object from its kind and payload, deriving id and size
func New(kind Kind, data []byte) *Object {
	return &Object{
		ID:   Hash(kind, data),
		Kind: kind,
		Size: int64(len(data)),
		Data: data,
	}
}

// Content is the decoded form of an object payload
type Content interface {
	Kind() Kind
	Encode() []byte
}

// Hash computes the object name of a payload
func Hash(kind Kind, data []byte) ID {
	h := sha1.New()
	h.Write(Header(kind, int64(len(data))))
	h.Write(data)

	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// Header returns the "<kind> <size>\0" prefix that loose objects and
// object hashing share
func Header(kind Kind, size int64) []byte {
	b := make([]byte, 0, 16)
	b = append(b, kind.String()...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, size, 10)
	return append(b, 0)
}

// Verify reports whether the stored id matches the payload hash
func (o *Object) Verify() error {
	if got := Hash(o.Kind, o.Data); got != o.ID {
		return &domain.OpError{
			Op:   "object.verify",
			Kind: domain.KindCorrupt,
			Err:  fmt.Errorf("hash mismatch for %s: payload hashes to %s", o.ID, got),
		}
	}
	return nil
}

// Decode parses the payload according to the object kind
func (o *Object) Decode() (Content, error) {
	var (
		c   Content
		err error
	)
	switch o.Kind {
	case KindBlob:
		c = &Blob{Data: o.Data}
	case KindTree:
		c, err = ParseTree(o.Data)
	case KindCommit:
		c, err = ParseCommit(o.Data)
	case KindTag:
		c, err = ParseTag(o.Data)
	default:
		err = fmt.Errorf("cannot decode %s", o.Kind)
	}
	if err != nil {
		return nil, &domain.OpError{Op: "object.decode", Kind: domain.KindCorrupt, Err: fmt.Errorf("%s %s: %w", o.Kind, o.ID, err)}
	}
	return c, nil
}

// Pretty writes the object the way "cat-file -p" shows it
func (o *Object) Pretty(w io.Writer) error {
	if o.Kind != KindTree {
		_, err := w.Write(o.Data)
		return err
	}

	tree, err := o.Decode()
	if err != nil {
		return err
	}
	for _, e := range tree.(*Tree).Entries {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			return err
		}
	}
	return nil
}

// Blob is opaque file content
type Blob struct {
	Data []byte
}

func (b *Blob) Kind() Kind     { return KindBlob }
func (b *Blob) Encode() []byte { return b.Data }
