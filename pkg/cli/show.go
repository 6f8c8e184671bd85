package cli

import (
	"github.com/spf13/cobra"
)

func newShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show FILENAME",
		Short: "Show the indexed record of one workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			rec, err := rt.service().GetByFilename(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.out, rec)
			}
			printRecord(rt.out, rec)
			return nil
		},
	}
}
