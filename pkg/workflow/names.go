package workflow

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	placeholderName = regexp.MustCompile(`(?i)^(my\s+workflow|untitled(\s+workflow)?|new\s+workflow|workflow)(\s*\(?\d+\)?)?$`)
	idPrefix        = regexp.MustCompile(`^\d+[_\-\s]+`)
	wordSeparators  = regexp.MustCompile(`[_\-\s]+`)
)

// ResolveName picks the display name of a workflow. The declared name wins
// unless it is empty, equals the filename stem, or is an editor placeholder;
// in those cases the name is derived from the filename.
func ResolveName(declared, filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	declared = strings.TrimSpace(declared)

	if declared != "" && !strings.EqualFold(declared, stem) && !placeholderName.MatchString(declared) {
		return declared
	}
	return NameFromFilename(filename)
}

// NameFromFilename turns "0042_slack_daily-digest.json" into "Slack Daily Digest"
func NameFromFilename(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	base := idPrefix.ReplaceAllString(stem, "")
	if strings.TrimSpace(base) == "" {
		base = stem
	}

	words := wordSeparators.Split(strings.TrimSpace(base), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		out = append(out, capitalize(w))
	}
	if len(out) == 0 {
		return stem
	}
	return strings.Join(out, " ")
}
