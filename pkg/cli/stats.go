package cli

import (
	"github.com/spf13/cobra"
)

func newStatsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.service().Stats(cmd.Context())
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.out, stats)
			}
			printStats(rt.out, stats)
			return nil
		},
	}
}
