package cli

import (
	"errors"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

// ErrInconsistent is returned by check when the full-text index does not
// match the records
var ErrInconsistent = errors.New("full-text index is inconsistent with the records")

func newCheckCommand(opts *globalOptions) *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the full-text index against the records",
		Long: heredoc.Doc(`
			Compares every full-text row with the record it shadows and reports missing,
			orphaned and mismatched rows. Exits non-zero when they disagree. With
			--repair the full-text index is rebuilt from the records first.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if repair {
				n, err := rt.store.Rebuild(cmd.Context())
				if err != nil {
					return err
				}
				rt.logger.WithField("rows", n).Info("Rebuilt full-text index")
			}

			c, err := rt.store.Verify(cmd.Context())
			if err != nil {
				return err
			}
			if rt.json {
				if err := writeJSON(rt.out, c); err != nil {
					return err
				}
			} else {
				printConsistency(rt.out, c)
			}
			if !c.OK() {
				return fmt.Errorf("%w: %d missing, %d orphaned, %d mismatched",
					ErrInconsistent, len(c.Missing), len(c.Orphaned), len(c.Mismatched))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "rebuild the full-text index before checking")
	return cmd
}
