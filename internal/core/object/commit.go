package object

import (
	"bytes"
	"errors"
	"fmt"
)

// Commit is a decoded commit object.
//
// Headers are stored in the order git writes them: tree, parents,
// author, committer, encoding, then any extra headers (gpgsig,
// mergetag, ...). Encode reproduces that order, so a well-formed commit
// round-trips byte for byte.
type Commit struct {
	Tree      ID
	Parents   []ID
	Author    string
	Committer string
	Encoding  string
	Extra     []ExtraHeader
	Message   []byte
}

func (c *Commit) Kind() Kind { return KindCommit }

// AuthorSignature parses the author line
func (c *Commit) AuthorSignature() (Signature, error) {
	return ParseSignature(c.Author)
}

// CommitterSignature parses the committer line
func (c *Commit) CommitterSignature() (Signature, error) {
	return ParseSignature(c.Committer)
}

// Subject returns the first line of the message
func (c *Commit) Subject() string {
	line, _ := cutLine(bytes.TrimLeft(c.Message, "\n"))
	return string(line)
}

// Header returns the first extra header with the given name
func (c *Commit) Header(name string) (string, bool) {
	for _, h := range c.Extra {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

func (c *Commit) Encode() []byte {
	var buf bytes.Buffer
	writeHeader(&buf, "tree", c.Tree.String())
	for _, p := range c.Parents {
		writeHeader(&buf, "parent", p.String())
	}
	writeHeader(&buf, "author", c.Author)
	writeHeader(&buf, "committer", c.Committer)
	if c.Encoding != "" {
		writeHeader(&buf, "encoding", c.Encoding)
	}
	for _, h := range c.Extra {
		writeHeader(&buf, h.Name, h.Value)
	}
	buf.WriteByte('\n')
	buf.Write(c.Message)
	return buf.Bytes()
}

// ParseCommit decodes a commit payload
func ParseCommit(data []byte) (*Commit, error) {
	headers, message, err := parseHeaders(data)
	if err != nil {
		return nil, err
	}

	c := &Commit{Message: message}
	var haveTree, haveAuthor, haveCommitter bool

	for _, h := range headers {
		switch h.Name {
		case "tree":
			if haveTree {
				return nil, errors.New("duplicate tree header")
			}
			if c.Tree, err = ParseID(h.Value); err != nil {
				return nil, fmt.Errorf("tree header: %w", err)
			}
			haveTree = true
		case "parent":
			p, err := ParseID(h.Value)
			if err != nil {
				return nil, fmt.Errorf("parent header: %w", err)
			}
			c.Parents = append(c.Parents, p)
		case "author":
			if !haveAuthor {
				c.Author, haveAuthor = h.Value, true
				continue
			}
			c.Extra = append(c.Extra, h)
		case "committer":
			if !haveCommitter {
				c.Committer, haveCommitter = h.Value, true
				continue
			}
			c.Extra = append(c.Extra, h)
		case "encoding":
			c.Encoding = h.Value
		default:
			c.Extra = append(c.Extra, h)
		}
	}

	switch {
	case !haveTree:
		return nil, errors.New("missing tree header")
	case !haveAuthor:
		return nil, errors.New("missing author header")
	case !haveCommitter:
		return nil, errors.New("missing committer header")
	}

	return c, nil
}
