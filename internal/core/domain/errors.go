package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification.
var (
	ErrNotFound      = errors.New("object not found")
	ErrInvalidID     = errors.New("invalid object name")
	ErrAmbiguous     = errors.New("ambiguous object name")
	ErrCorrupt       = errors.New("corrupt object data")
	ErrUnsupported   = errors.New("unsupported format")
	ErrInvalidConfig = errors.New("invalid config")
	ErrNotRepository = errors.New("not a git repository")
)

// ErrorKind is a coarse-grained categorization for errors.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindInvalidID     ErrorKind = "invalid_id"
	KindAmbiguous     ErrorKind = "ambiguous"
	KindCorrupt       ErrorKind = "corrupt"
	KindUnsupported   ErrorKind = "unsupported"
	KindInvalidConfig ErrorKind = "invalid_config"
	KindIO            ErrorKind = "io"
)

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op   string
	Kind ErrorKind
	Path string // Optional: relevant file path
	Err  error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether any OpError in err's chain carries kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var oe *OpError
		if !errors.As(err, &oe) {
			return false
		}
		if oe.Kind == kind {
			return true
		}
		err = oe.Err
	}
	return false
}

// Errorf builds an OpError whose cause is formatted like fmt.Errorf.
func Errorf(op string, kind ErrorKind, format string, args ...any) error {
	return &OpError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// AmbiguousError lists every object name a short prefix matched.
type AmbiguousError struct {
	Prefix     string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("short object ID %s is ambiguous (%d candidates)", e.Prefix, len(e.Candidates))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguous }
