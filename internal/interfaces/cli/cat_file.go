package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gitty.dev/cli/internal/application/services"
)

// CatFileFlags holds command-line flags for the cat-file command
type CatFileFlags struct {
	Pretty bool
	Type   bool
	Size   bool
	Exists bool
}

func (f CatFileFlags) modes() int {
	n := 0
	for _, on := range []bool{f.Pretty, f.Type, f.Size, f.Exists} {
		if on {
			n++
		}
	}
	return n
}

func newCatFileCommand(s *session) *cobra.Command {
	flags := &CatFileFlags{}

	cmd := &cobra.Command{
		Use:   "cat-file (-p | -t | -s | -e) <object>",
		Short: "Print an object's content, type or size",
		Long: `Print information about a repository object.

Examples:
  gitty cat-file -p HEAD          # pretty-print the commit HEAD points at
  gitty cat-file -t v1.0          # print the type of a tag
  gitty cat-file -s 3f2a9c^{tree} # size of a commit's tree
  gitty cat-file -e 3f2a9c        # exit 0 if the object exists, 1 if not`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.modes() != 1 {
				return &ExitError{Code: ExitFatal, Err: errors.New("cat-file: exactly one of -p, -t, -s or -e is required")}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatFile(cmd, s.get(), flags, args[0])
		},
	}

	cmd.Flags().BoolVarP(&flags.Pretty, "pretty", "p", false, "Pretty-print the object's content")
	cmd.Flags().BoolVarP(&flags.Type, "type", "t", false, "Show the object type")
	cmd.Flags().BoolVarP(&flags.Size, "size", "s", false, "Show the object size")
	cmd.Flags().BoolVarP(&flags.Exists, "exists", "e", false, "Exit with zero status if the object exists")

	return cmd
}

func runCatFile(cmd *cobra.Command, c *CLIContainer, flags *CatFileFlags, rev string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	id, err := c.Objects.Resolve(ctx, rev)
	if flags.Exists {
		if services.IsMissing(err) {
			return &ExitError{Code: ExitFalse}
		}
		if err != nil {
			return err
		}
		if _, err := c.Objects.Backend(ctx, id); err != nil {
			if services.IsMissing(err) {
				return &ExitError{Code: ExitFalse}
			}
			return err
		}
		return nil
	}
	if err != nil {
		return err
	}

	obj, err := c.Objects.Get(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case flags.Type:
		_, err = fmt.Fprintln(out, obj.Kind)
	case flags.Size:
		_, err = fmt.Fprintln(out, obj.Size)
	default:
		err = obj.Pretty(out)
	}
	return err
}
