package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRevParseCommand(s *session) *cobra.Command {
	var short int

	cmd := &cobra.Command{
		Use:   "rev-parse <rev>...",
		Short: "Print the object id each revision names",
		Long: `Resolve revisions to object ids.

Accepted forms: a full or abbreviated object id, a ref name such as
HEAD, main, v1.0 or origin/main, and a ^{tree}, ^{commit}, ^{tag},
^{blob} or ^{} peel suffix.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := s.get()
			for _, rev := range args {
				id, err := c.Objects.Resolve(cmd.Context(), rev)
				if err != nil {
					return err
				}
				text := id.String()
				if cmd.Flags().Changed("short") {
					text = id.Short(short)
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), text); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&short, "short", 7, "Abbreviate ids to this many hex digits")
	// bare --short takes no value, so "--short main" leaves main as a rev
	cmd.Flags().Lookup("short").NoOptDefVal = "7"

	return cmd
}
