package object

import (
	"fmt"

	"gitty.dev/cli/internal/core/domain"
)

// Kind is the type of a git object. The numeric values match the
// type codes used in pack entry headers.
type Kind uint8

const (
	KindInvalid Kind = 0
	KindCommit  Kind = 1
	KindTree    Kind = 2
	KindBlob    Kind = 3
	KindTag     Kind = 4
)

// ParseKind converts a type name such as "blob" into a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "commit":
		return KindCommit, nil
	case "tree":
		return KindTree, nil
	case "blob":
		return KindBlob, nil
	case "tag":
		return KindTag, nil
	default:
		return KindInvalid, &domain.OpError{Op: "object.parsekind", Kind: domain.KindCorrupt, Err: fmt.Errorf("unknown object type %q", s)}
	}
}

// String returns the type name
func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindTree:
		return "tree"
	case KindBlob:
		return "blob"
	case KindTag:
		return "tag"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the four object types
func (k Kind) Valid() bool {
	return k >= KindCommit && k <= KindTag
}
