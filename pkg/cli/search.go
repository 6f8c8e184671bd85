package cli

import (
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/flowindex/pkg/search"
)

func newSearchCommand(opts *globalOptions) *cobra.Command {
	req := search.Request{}

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search indexed workflows",
		Long: heredoc.Doc(`
			Runs a full-text search over workflow names, descriptions, integrations
			and tags. Words match by prefix and "quoted phrases" match exactly. An
			empty query lists every workflow.
		`),
		Example: heredoc.Doc(`
			flowindex search slack
			flowindex search '"daily digest"' --trigger Scheduled --active
			flowindex search --complexity high --page 2
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			req.Query = strings.Join(args, " ")
			resp, err := rt.service().Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.out, resp)
			}
			printSearch(rt.out, resp)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Trigger, "trigger", "", "trigger filter: Webhook, Scheduled, Manual or Triggered")
	flags.StringVar(&req.Complexity, "complexity", "", "complexity filter: low, medium or high")
	flags.BoolVar(&req.ActiveOnly, "active", false, "only active workflows")
	flags.IntVar(&req.Page, "page", 1, "result page")
	flags.IntVar(&req.PerPage, "per-page", search.DefaultPerPage, "results per page")
	return cmd
}
