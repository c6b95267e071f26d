package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gitty.dev/cli/internal/core/object"
	"gitty.dev/cli/internal/core/ports"
)

// ShowRefFlags holds command-line flags for the show-ref command
type ShowRefFlags struct {
	Head        bool
	Heads       bool
	Tags        bool
	Dereference bool
}

func (f *ShowRefFlags) wants(name string) bool {
	if !f.Heads && !f.Tags {
		return true
	}
	return (f.Heads && strings.HasPrefix(name, "refs/heads/")) ||
		(f.Tags && strings.HasPrefix(name, "refs/tags/"))
}

func newShowRefCommand(s *session) *cobra.Command {
	flags := &ShowRefFlags{}

	cmd := &cobra.Command{
		Use:   "show-ref [--head] [--heads] [--tags] [-d]",
		Short: "List refs and the objects they point at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowRef(cmd.Context(), s.get(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Head, "head", false, "Show HEAD as well")
	cmd.Flags().BoolVar(&flags.Heads, "heads", false, "Only show branches")
	cmd.Flags().BoolVar(&flags.Tags, "tags", false, "Only show tags")
	cmd.Flags().BoolVarP(&flags.Dereference, "dereference", "d", false, "Also show what annotated tags point at, as <name>^{}")

	return cmd
}

func runShowRef(ctx context.Context, c *CLIContainer, w io.Writer, flags *ShowRefFlags) error {
	refs, err := c.Refs.List(ctx)
	if err != nil {
		return err
	}

	if flags.Head {
		id, ok, err := c.Refs.Resolve(ctx, "HEAD")
		if err != nil {
			return err
		}
		if ok {
			refs = append([]ports.Ref{{Name: "HEAD", Target: id}}, refs...)
		}
	}

	shown := 0
	for _, ref := range refs {
		if ref.Name != "HEAD" && !flags.wants(ref.Name) {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", ref.Target, ref.Name); err != nil {
			return err
		}
		shown++

		if !flags.Dereference {
			continue
		}
		peeled, ok, err := peeledTarget(ctx, c, ref)
		if err != nil {
			return err
		}
		if ok {
			if _, err := fmt.Fprintf(w, "%s %s^{}\n", peeled, ref.Name); err != nil {
				return err
			}
		}
	}

	if shown == 0 {
		return &ExitError{Code: ExitFalse}
	}
	return nil
}

// peeledTarget reports what an annotated tag ref ultimately points at
func peeledTarget(ctx context.Context, c *CLIContainer, ref ports.Ref) (object.ID, bool, error) {
	if ref.Peeled != nil {
		return *ref.Peeled, true, nil
	}
	obj, err := c.Objects.Get(ctx, ref.Target)
	if err != nil {
		return object.ZeroID, false, err
	}
	if obj.Kind != object.KindTag {
		return object.ZeroID, false, nil
	}
	id, err := c.Objects.Peel(ctx, ref.Target, object.KindInvalid)
	if err != nil {
		return object.ZeroID, false, err
	}
	return id, true, nil
}
