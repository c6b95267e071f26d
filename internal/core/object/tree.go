package object

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// File modes that appear in tree entries
const (
	ModeTree       uint32 = 0o040000
	ModeBlob       uint32 = 0o100644
	ModeExecutable uint32 = 0o100755
	ModeSymlink    uint32 = 0o120000
	ModeGitlink    uint32 = 0o160000
)

// TreeEntry is one "<mode> <name>\0<id>" record
type TreeEntry struct {
	Mode uint32
	Name string
	ID   ID
}

// Type derives the referenced object's kind from the entry mode
func (e TreeEntry) Type() Kind {
	switch e.Mode & 0o170000 {
	case ModeTree:
		return KindTree
	case ModeGitlink:
		return KindCommit
	default:
		return KindBlob
	}
}

// String renders the entry as "cat-file -p" does
func (e TreeEntry) String() string {
	return fmt.Sprintf("%06o %s %s\t%s", e.Mode, e.Type(), e.ID, e.Name)
}

// Tree is an ordered list of entries
type Tree struct {
	Entries []TreeEntry
}

func (t *Tree) Kind() Kind { return KindTree }

// Encode writes entries back in their stored form. Modes are written
// without leading zeros, as git does.
func (t *Tree) Encode() []byte {
	var buf bytes.Buffer
	for _, e := range t.Entries {
		buf.WriteString(strconv.FormatUint(uint64(e.Mode), 8))
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.ID[:])
	}
	return buf.Bytes()
}

// Find returns the entry with the given name
func (t *Tree) Find(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// ParseTree decodes a tree payload
func ParseTree(data []byte) (*Tree, error) {
	tree := &Tree{}

	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp <= 0 {
			return nil, errors.New("tree entry: missing mode")
		}
		mode, err := strconv.ParseUint(string(data[:sp]), 8, 32)
		if err != nil {
			return nil, fmt.Errorf("tree entry: bad mode %q", data[:sp])
		}
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, errors.New("tree entry: unterminated name")
		}
		if nul == 0 {
			return nil, errors.New("tree entry: empty name")
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < IDSize {
			return nil, fmt.Errorf("tree entry %q: truncated object id", name)
		}
		var id ID
		copy(id[:], data[:IDSize])
		data = data[IDSize:]

		tree.Entries = append(tree.Entries, TreeEntry{Mode: uint32(mode), Name: name, ID: id})
	}

	return tree, nil
}
