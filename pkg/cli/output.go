package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/platinummonkey/flowindex/pkg/indexer"
	"github.com/platinummonkey/flowindex/pkg/search"
	"github.com/platinummonkey/flowindex/pkg/storage"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func printSummary(w io.Writer, s *indexer.Summary) {
	fmt.Fprintln(w, titleStyle.Render("Index run "+s.RunID))
	t := newTable("total", "processed", "skipped", "errors", "removed", "records", "duration").
		Row(
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Processed),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Errors),
			strconv.Itoa(s.Removed),
			strconv.Itoa(s.Records),
			s.Duration.Round(time.Millisecond).String(),
		)
	fmt.Fprintln(w, t.Render())

	for _, fe := range s.FileErrors {
		fmt.Fprintf(w, "%s %s (%s): %s\n", errorStyle.Render("failed"), fe.Filename, fe.Kind, fe.Message)
	}
	if s.Errors > len(s.FileErrors) {
		fmt.Fprintf(w, "... and %d more\n", s.Errors-len(s.FileErrors))
	}
}

func printSearch(w io.Writer, resp *search.Response) {
	if resp.Total == 0 {
		fmt.Fprintln(w, "No workflows found")
		return
	}

	t := newTable("filename", "name", "trigger", "complexity", "nodes", "active", "integrations")
	for _, rec := range resp.Workflows {
		t.Row(
			rec.Filename,
			rec.Name,
			string(rec.TriggerType),
			string(rec.Complexity),
			strconv.Itoa(rec.NodeCount),
			strconv.FormatBool(rec.Active),
			strings.Join(rec.Integrations, ", "),
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%s %d of %d, page %d/%d\n",
		labelStyle.Render("showing"), len(resp.Workflows), resp.Total, resp.Page, resp.Pages)
}

func printRecord(w io.Writer, rec *workflow.Record) {
	fmt.Fprintln(w, titleStyle.Render(rec.Name))
	rows := [][2]string{
		{"filename", rec.Filename},
		{"workflow id", rec.WorkflowID},
		{"active", strconv.FormatBool(rec.Active)},
		{"trigger", string(rec.TriggerType)},
		{"complexity", string(rec.Complexity)},
		{"nodes", strconv.Itoa(rec.NodeCount)},
		{"integrations", strings.Join(rec.Integrations, ", ")},
		{"tags", strings.Join(rec.Tags, ", ")},
		{"description", rec.Description},
		{"created", rec.CreatedAt},
		{"updated", rec.UpdatedAt},
		{"hash", rec.FileHash},
		{"size", strconv.FormatInt(rec.FileSize, 10)},
		{"analyzed", rec.AnalyzedAt.Format("2006-01-02 15:04:05Z07:00")},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-13s", row[0])), row[1])
	}
}

func printStats(w io.Writer, stats *storage.Stats) {
	fmt.Fprintln(w, titleStyle.Render("Workflow index"))
	fmt.Fprintln(w, newTable("total", "active", "inactive", "nodes", "integrations").
		Row(
			strconv.Itoa(stats.Total),
			strconv.Itoa(stats.Active),
			strconv.Itoa(stats.Inactive),
			strconv.Itoa(stats.TotalNodes),
			strconv.Itoa(stats.UniqueIntegrations),
		).Render())

	fmt.Fprintln(w, countTable("trigger", stats.ByTrigger).Render())
	fmt.Fprintln(w, countTable("complexity", stats.ByComplexity).Render())
	if !stats.LastIndexedAt.IsZero() {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("last indexed"), stats.LastIndexedAt.Format("2006-01-02 15:04:05Z07:00"))
	}
}

func countTable(label string, counts map[string]int) *table.Table {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := newTable(label, "count")
	for _, k := range keys {
		t.Row(k, strconv.Itoa(counts[k]))
	}
	return t
}

func printConsistency(w io.Writer, c *storage.Consistency) {
	if c.OK() {
		fmt.Fprintf(w, "%s %d records, %d full-text rows\n", okStyle.Render("consistent"), c.Records, c.ShadowRows)
		return
	}
	fmt.Fprintf(w, "%s %d records, %d full-text rows\n", errorStyle.Render("inconsistent"), c.Records, c.ShadowRows)
	for _, name := range c.Missing {
		fmt.Fprintf(w, "  missing    %s\n", name)
	}
	for _, name := range c.Mismatched {
		fmt.Fprintf(w, "  mismatched %s\n", name)
	}
	for _, id := range c.Orphaned {
		fmt.Fprintf(w, "  orphaned   rowid %d\n", id)
	}
}
