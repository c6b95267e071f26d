package object

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// ExtraHeader is a commit or tag header without a dedicated field, such
// as gpgsig or mergetag
type ExtraHeader struct {
	Name  string
	Value string
}

// parseHeaders splits "<key> SP <value> LF" lines up to the blank line
// that starts the message. A line beginning with a space continues the
// previous value; the space is dropped and the newline kept.
func parseHeaders(data []byte) ([]ExtraHeader, []byte, error) {
	var headers []ExtraHeader

	for len(data) > 0 {
		if data[0] == '\n' {
			return headers, data[1:], nil
		}

		line, rest := cutLine(data)
		data = rest

		if line[0] == ' ' {
			if len(headers) == 0 {
				return nil, nil, errors.New("continuation line before any header")
			}
			last := &headers[len(headers)-1]
			last.Value += "\n" + string(line[1:])
			continue
		}

		key, value, ok := bytes.Cut(line, []byte{' '})
		if !ok || len(key) == 0 {
			return nil, nil, errors.New("malformed header line " + strconv.Quote(string(line)))
		}
		headers = append(headers, ExtraHeader{Name: string(key), Value: string(value)})
	}

	// No blank line: headers only, empty message.
	return headers, nil, nil
}

func cutLine(data []byte) (line, rest []byte) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, nil
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteByte(' ')
	buf.WriteString(strings.ReplaceAll(value, "\n", "\n "))
	buf.WriteByte('\n')
}
