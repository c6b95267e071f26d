package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gitty.dev/cli/internal/application/services"
)

// CountObjectsFlags holds command-line flags for the count-objects command
type CountObjectsFlags struct {
	Verbose bool
	Human   bool
}

func newCountObjectsCommand(s *session) *cobra.Command {
	flags := &CountObjectsFlags{}

	cmd := &cobra.Command{
		Use:   "count-objects [-v] [-H]",
		Short: "Count loose and packed objects and their disk usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := s.get().Inventory.Count(cmd.Context())
			if err != nil {
				return err
			}
			return writeInventory(cmd.OutOrStdout(), inv, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Report pack usage as well")
	cmd.Flags().BoolVarP(&flags.Human, "human-readable", "H", false, "Print sizes in human readable units")

	return cmd
}

func writeInventory(w io.Writer, inv services.Inventory, flags *CountObjectsFlags) error {
	size := func(n int64) string {
		if flags.Human {
			return humanize.IBytes(uint64(n))
		}
		return strconv.FormatInt(n/1024, 10)
	}

	if !flags.Verbose {
		unit := " kilobytes"
		if flags.Human {
			unit = ""
		}
		_, err := fmt.Fprintf(w, "%d objects, %s%s\n", inv.Count, size(inv.Size), unit)
		return err
	}

	_, err := fmt.Fprintf(w, "count: %d\nsize: %s\nin-pack: %d\npacks: %d\nsize-pack: %s\nprune-packable: 0\ngarbage: 0\nsize-garbage: %s\n",
		inv.Count, size(inv.Size), inv.InPack, inv.Packs, size(inv.SizePack), size(0))
	return err
}
