package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPruneCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove records whose workflow file no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			removed, err := rt.indexer(nil).Prune(cmd.Context())
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.out, map[string]int{"removed": removed})
			}
			fmt.Fprintf(rt.out, "Removed %d records\n", removed)
			return nil
		},
	}
}
