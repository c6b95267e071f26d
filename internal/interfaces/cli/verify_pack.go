package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"gitty.dev/cli/internal/core/ports"
)

// VerifyPackFlags holds command-line flags for the verify-pack command
type VerifyPackFlags struct {
	Verbose bool
}

func newVerifyPackCommand(s *session) *cobra.Command {
	flags := &VerifyPackFlags{}

	cmd := &cobra.Command{
		Use:   "verify-pack [-v] <pack>.idx...",
		Short: "Check pack files and list how each object is stored",
		Long: `Read every entry of a pack, resolving delta chains.

With -v each object is listed as
  <id> <type> <size> <size-in-pack> <offset> [<depth> <base-id>]
followed by a histogram of delta chain lengths.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := s.get()
			for _, arg := range args {
				if err := verifyPack(cmd, c, arg, flags); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "List every object and the delta chain histogram")

	return cmd
}

func verifyPack(cmd *cobra.Command, c *CLIContainer, arg string, flags *VerifyPackFlags) error {
	out := cmd.OutOrStdout()
	idxPath := strings.TrimSuffix(arg, ".pack")
	if !strings.HasSuffix(idxPath, ".idx") {
		idxPath += ".idx"
	}

	chains := make(map[int]int)
	err := c.Inspector.Inspect(cmd.Context(), idxPath, func(e ports.PackEntry) error {
		chains[e.Depth]++
		if !flags.Verbose {
			return nil
		}
		return writePackEntry(out, e)
	})
	if err != nil {
		return err
	}
	if !flags.Verbose {
		return nil
	}

	depths := make([]int, 0, len(chains))
	for d := range chains {
		depths = append(depths, d)
	}
	sort.Ints(depths)
	for _, d := range depths {
		if d == 0 {
			fmt.Fprintf(out, "non delta: %d %s\n", chains[d], plural(chains[d]))
			continue
		}
		fmt.Fprintf(out, "chain length = %d: %d %s\n", d, chains[d], plural(chains[d]))
	}
	_, err = fmt.Fprintf(out, "%s: ok\n", strings.TrimSuffix(filepath.ToSlash(idxPath), ".idx")+".pack")
	return err
}

func writePackEntry(w io.Writer, e ports.PackEntry) error {
	if e.Base == nil {
		_, err := fmt.Fprintf(w, "%s %-6s %d %d %d\n", e.ID, e.Type, e.Size, e.PackedSize, e.Offset)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %-6s %d %d %d %d %s\n", e.ID, e.Type, e.Size, e.PackedSize, e.Offset, e.Depth, e.Base)
	return err
}

func plural(n int) string {
	if n == 1 {
		return "object"
	}
	return "objects"
}
