package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gitty.dev/cli/internal/application/services"
	"gitty.dev/cli/internal/core/object"
)

// git's default log date format
const logDateFormat = "Mon Jan 2 15:04:05 2006 -0700"

// LogFlags holds command-line flags for the log command
type LogFlags struct {
	MaxCount    int
	Oneline     bool
	FirstParent bool
}

func newLogCommand(s *session) *cobra.Command {
	flags := &LogFlags{}

	cmd := &cobra.Command{
		Use:   "log [-n N] [--oneline] [--first-parent] [<rev>]",
		Short: "Show commit history",
		Long: `Show commits reachable from a revision, newest first by committer
time. The revision defaults to HEAD.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			return runLog(cmd, s.get(), flags, rev)
		},
	}

	cmd.Flags().IntVarP(&flags.MaxCount, "max-count", "n", 0, "Limit the number of commits to output")
	cmd.Flags().BoolVar(&flags.Oneline, "oneline", false, "Show each commit on a single line")
	cmd.Flags().BoolVar(&flags.FirstParent, "first-parent", false, "Follow only the first parent of merge commits")

	return cmd
}

func runLog(cmd *cobra.Command, c *CLIContainer, flags *LogFlags, rev string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	id, err := c.Objects.Resolve(ctx, rev)
	if err != nil {
		return err
	}
	start, err := c.Objects.Peel(ctx, id, object.KindCommit)
	if err != nil {
		return err
	}

	opts := services.WalkOptions{Limit: flags.MaxCount, FirstParent: flags.FirstParent}
	first := true
	return c.History.Walk(ctx, []object.ID{start}, opts, func(e services.LogEntry) error {
		if flags.Oneline {
			_, err := fmt.Fprintf(out, "%s %s\n", e.ID.Short(7), e.Commit.Subject())
			return err
		}
		if !first {
			if _, err := fmt.Fprintln(out); err != nil {
				return err
			}
		}
		first = false
		return writeLogEntry(out, e)
	})
}

func writeLogEntry(w io.Writer, e services.LogEntry) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "commit %s\n", e.ID)

	if len(e.Commit.Parents) > 1 {
		buf.WriteString("Merge:")
		for _, p := range e.Commit.Parents {
			fmt.Fprintf(&buf, " %s", p.Short(7))
		}
		buf.WriteByte('\n')
	}

	if sig, err := e.Commit.AuthorSignature(); err == nil {
		fmt.Fprintf(&buf, "Author: %s <%s>\n", sig.Name, sig.Email)
		if !sig.When.IsZero() {
			fmt.Fprintf(&buf, "Date:   %s\n", sig.When.Format(logDateFormat))
		}
	} else {
		fmt.Fprintf(&buf, "Author: %s\n", e.Commit.Author)
	}

	buf.WriteByte('\n')
	msg := bytes.TrimRight(bytes.TrimLeft(e.Commit.Message, "\n"), "\n")
	for _, line := range bytes.Split(msg, []byte("\n")) {
		if len(line) == 0 {
			buf.WriteByte('\n')
			continue
		}
		buf.WriteString("    ")
		buf.Write(line)
		buf.WriteByte('\n')
	}

	_, err := w.Write(buf.Bytes())
	return err
}
