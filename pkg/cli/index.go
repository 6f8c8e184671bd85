package cli

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

func newIndexCommand(opts *globalOptions) *cobra.Command {
	var force, noPrune bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the workflows directory",
		Long: heredoc.Doc(`
			Scans the workflows directory, analyzes every new or changed document and
			stores the result. Unchanged documents are skipped unless --force is given.
			Records whose file was deleted are removed unless --no-prune is given.
			A document that fails to parse is reported and does not stop the run.
		`),
		Example: heredoc.Doc(`
			flowindex index --dir ./workflows
			flowindex index --force
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if noPrune {
				rt.cfg.Index.PruneMissing = false
			}
			if err := ensureDir(rt.cfg.Index.WorkflowsDir); err != nil {
				return err
			}

			summary, err := rt.indexer(nil).IndexAll(cmd.Context(), force)
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.out, summary)
			}
			printSummary(rt.out, summary)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "reprocess every document")
	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "keep records whose file no longer exists")
	return cmd
}
