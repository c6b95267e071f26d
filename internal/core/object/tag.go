package object

import (
	"bytes"
	"errors"
	"fmt"
)

// Tag is a decoded annotated tag. A PGP signature, when present, stays
// inside Message.
type Tag struct {
	Object  ID
	Type    Kind
	Name    string
	Tagger  string
	Extra   []ExtraHeader
	Message []byte
}

func (t *Tag) Kind() Kind { return KindTag }

func (t *Tag) Encode() []byte {
	var buf bytes.Buffer
	writeHeader(&buf, "object", t.Object.String())
	writeHeader(&buf, "type", t.Type.String())
	writeHeader(&buf, "tag", t.Name)
	if t.Tagger != "" {
		writeHeader(&buf, "tagger", t.Tagger)
	}
	for _, h := range t.Extra {
		writeHeader(&buf, h.Name, h.Value)
	}
	buf.WriteByte('\n')
	buf.Write(t.Message)
	return buf.Bytes()
}

// ParseTag decodes a tag payload. The tagger header is optional; tags
// made by very old git versions lack it.
func ParseTag(data []byte) (*Tag, error) {
	headers, message, err := parseHeaders(data)
	if err != nil {
		return nil, err
	}

	t := &Tag{Message: message}
	var haveObject, haveType, haveName bool

	for _, h := range headers {
		switch {
		case h.Name == "object" && !haveObject:
			if t.Object, err = ParseID(h.Value); err != nil {
				return nil, fmt.Errorf("object header: %w", err)
			}
			haveObject = true
		case h.Name == "type" && !haveType:
			if t.Type, err = ParseKind(h.Value); err != nil {
				return nil, fmt.Errorf("type header: %w", err)
			}
			haveType = true
		case h.Name == "tag" && !haveName:
			t.Name, haveName = h.Value, true
		case h.Name == "tagger" && t.Tagger == "":
			t.Tagger = h.Value
		default:
			t.Extra = append(t.Extra, h)
		}
	}

	switch {
	case !haveObject:
		return nil, errors.New("missing object header")
	case !haveType:
		return nil, errors.New("missing type header")
	case !haveName:
		return nil, errors.New("missing tag header")
	}

	return t, nil
}
