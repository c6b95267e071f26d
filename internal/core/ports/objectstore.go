package ports

import (
	"context"

	"gitty.dev/cli/internal/core/object"
)

// ObjectBackend is one physical source of objects: the loose object
// directory or the set of pack files
type ObjectBackend interface {
	// Name identifies the backend in logs and "which backend" queries
	Name() string

	// Contains reports whether the backend stores id
	Contains(ctx context.Context, id object.ID) (bool, error)

	// Read returns the fully resolved object
	Read(ctx context.Context, id object.ID) (*object.Object, error)

	// MatchPrefix returns every stored id beginning with prefix
	MatchPrefix(ctx context.Context, prefix object.Prefix) ([]object.ID, error)

	// Walk calls fn for every stored id
	Walk(ctx context.Context, fn func(object.ID) error) error
}

// ObjectReader resolves objects regardless of where they are stored
type ObjectReader interface {
	Get(ctx context.Context, id object.ID) (*object.Object, error)
}

// Ref is a named pointer into the object graph
type Ref struct {
	Name   string
	Target object.ID
	// Peeled is the object an annotated tag ultimately points at, when
	// packed-refs recorded it
	Peeled *object.ID
	// Symbolic holds the target name for refs such as HEAD
	Symbolic string
}

// RefStore resolves and lists refs
type RefStore interface {
	// Resolve expands a short name such as "main" or "v1.0" using git's
	// lookup rules. The bool is false when no ref matches.
	Resolve(ctx context.Context, name string) (object.ID, bool, error)

	// List returns every ref sorted by name
	List(ctx context.Context) ([]Ref, error)

	// Head returns the ref HEAD points at, or "" when detached
	Head(ctx context.Context) (string, error)
}

// PackEntry describes how one object is stored in a pack
type PackEntry struct {
	ID     object.ID
	Offset uint64
	Type   object.Kind
	// Size is the resolved object size
	Size int64
	// PackedSize is the number of bytes the entry occupies in the pack
	PackedSize uint64
	Depth      int
	Base       *object.ID
}

// PackStat summarizes one loaded pack
type PackStat struct {
	Name       string
	Objects    int
	PackBytes  int64
	IndexBytes int64
}

// PackInspector walks the entries of a single pack index in pack order
type PackInspector interface {
	Inspect(ctx context.Context, idxPath string, fn func(PackEntry) error) error
}

// LooseStats reports the loose object count and their bytes on disk
type LooseStats interface {
	Stat(ctx context.Context) (count int, bytes int64, err error)
}

// PackStats lists every loaded pack
type PackStats interface {
	Stats() []PackStat
}
