package cli

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/spf13/cobra"

	"gitty.dev/cli/internal/core/object"
)

// LsTreeFlags holds command-line flags for the ls-tree command
type LsTreeFlags struct {
	Recursive bool
	NameOnly  bool
}

func newLsTreeCommand(s *session) *cobra.Command {
	flags := &LsTreeFlags{}

	cmd := &cobra.Command{
		Use:   "ls-tree [-r] [--name-only] <tree-ish>",
		Short: "List the contents of a tree object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := s.get()
			ctx := cmd.Context()

			id, err := c.Objects.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			tree, err := c.Objects.Peel(ctx, id, object.KindTree)
			if err != nil {
				return err
			}
			return listTree(ctx, c, cmd.OutOrStdout(), tree, "", flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.Recursive, "recursive", "r", false, "Recurse into sub-trees")
	cmd.Flags().BoolVar(&flags.NameOnly, "name-only", false, "List only file names")

	return cmd
}

func listTree(ctx context.Context, c *CLIContainer, w io.Writer, id object.ID, prefix string, flags *LsTreeFlags) error {
	tree, err := c.Objects.Tree(ctx, id)
	if err != nil {
		return err
	}

	for _, e := range tree.Entries {
		name := path.Join(prefix, e.Name)
		if flags.Recursive && e.Type() == object.KindTree {
			if err := listTree(ctx, c, w, e.ID, name, flags); err != nil {
				return err
			}
			continue
		}

		if flags.NameOnly {
			_, err = fmt.Fprintln(w, name)
		} else {
			_, err = fmt.Fprintf(w, "%06o %s %s\t%s\n", e.Mode, e.Type(), e.ID, name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
