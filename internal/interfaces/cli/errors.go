package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitty.dev/cli/internal/core/domain"
	"gitty.dev/cli/internal/core/object"
)

// Exit statuses, matching git
const (
	ExitOK    = 0
	ExitFalse = 1
	ExitFatal = 128
)

// ExitError asks for a specific exit status. A nil Err exits quietly.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// errorStyles renders diagnostics on stderr
type errorStyles struct {
	fatal lipgloss.Style
	hint  lipgloss.Style
	id    lipgloss.Style
}

func newErrorStyles(w io.Writer, noColor bool) errorStyles {
	if noColor {
		return errorStyles{}
	}
	r := lipgloss.NewRenderer(w)
	return errorStyles{
		fatal: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		hint:  r.NewStyle().Foreground(lipgloss.Color("245")),
		id:    r.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// reportError prints err the way git does and returns the exit status
func reportError(w io.Writer, err error, noColor bool, c *CLIContainer) int {
	var exit *ExitError
	if errors.As(err, &exit) && exit.Err == nil {
		return exit.Code
	}
	code := ExitFatal
	if exit != nil {
		code = exit.Code
	}

	st := newErrorStyles(w, noColor)

	var amb *domain.AmbiguousError
	if errors.As(err, &amb) {
		fmt.Fprintf(w, "%s short object ID %s is ambiguous\n", st.fatal.Render("error:"), amb.Prefix)
		fmt.Fprintln(w, st.hint.Render("hint: The candidates are:"))
		for _, cand := range amb.Candidates {
			fmt.Fprintln(w, st.hint.Render("hint:   ")+st.id.Render(cand)+st.hint.Render(" "+candidateKind(c, cand)))
		}
	}

	fmt.Fprintf(w, "%s %s\n", st.fatal.Render("fatal:"), describe(err))
	return code
}

func candidateKind(c *CLIContainer, hexID string) string {
	if c == nil || c.Objects == nil {
		return ""
	}
	id, err := object.ParseID(hexID)
	if err != nil {
		return ""
	}
	obj, err := c.Objects.Get(context.Background(), id)
	if err != nil {
		return ""
	}
	return obj.Kind.String()
}

// describe turns an error chain into a one-line message
func describe(err error) string {
	var amb *domain.AmbiguousError
	switch {
	case errors.As(err, &amb):
		return fmt.Sprintf("ambiguous argument '%s': unknown revision or path not in the working tree.", amb.Prefix)
	case domain.IsKind(err, domain.KindNotFound) && errors.Is(err, domain.ErrNotRepository):
		return "not a git repository (or any of the parent directories): .git"
	}
	msg := err.Error()
	return strings.TrimSuffix(msg, "\n")
}
