package object

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is a parsed author, committer or tagger line
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// ParseSignature parses "Name <email> <unix-seconds> <+hhmm>"
func ParseSignature(s string) (Signature, error) {
	open := strings.IndexByte(s, '<')
	closeIdx := strings.LastIndexByte(s, '>')
	if open < 0 || closeIdx < open {
		return Signature{}, fmt.Errorf("signature %q: missing <email>", s)
	}

	sig := Signature{
		Name:  strings.TrimSpace(s[:open]),
		Email: s[open+1 : closeIdx],
	}

	fields := strings.Fields(s[closeIdx+1:])
	if len(fields) == 0 {
		return sig, nil
	}

	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return sig, fmt.Errorf("signature %q: bad timestamp: %w", s, err)
	}

	loc := time.UTC
	if len(fields) > 1 {
		if loc, err = parseZone(fields[1]); err != nil {
			return sig, fmt.Errorf("signature %q: %w", s, err)
		}
	}
	sig.When = time.Unix(secs, 0).In(loc)

	return sig, nil
}

func parseZone(z string) (*time.Location, error) {
	if len(z) != 5 || (z[0] != '+' && z[0] != '-') {
		return nil, errors.New("bad timezone " + strconv.Quote(z))
	}
	hh, err1 := strconv.Atoi(z[1:3])
	mm, err2 := strconv.Atoi(z[3:5])
	if err1 != nil || err2 != nil {
		return nil, errors.New("bad timezone " + strconv.Quote(z))
	}
	offset := hh*3600 + mm*60
	if z[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(z, offset), nil
}
