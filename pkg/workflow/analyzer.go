package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/platinummonkey/flowindex/pkg/indexerr"
	"github.com/platinummonkey/flowindex/pkg/scanner"
)

const (
	lowComplexityMax    = 5
	mediumComplexityMax = 15

	// describedIntegrations caps how many integrations a description names
	describedIntegrations = 3
)

// reservedServices are core node namespaces that do not name an external service.
// Keys are lowercase with any trailing "trigger" removed.
var reservedServices = map[string]bool{
	"set":            true,
	"function":       true,
	"functionitem":   true,
	"code":           true,
	"if":             true,
	"switch":         true,
	"merge":          true,
	"noop":           true,
	"stickynote":     true,
	"start":          true,
	"manual":         true,
	"wait":           true,
	"splitinbatches": true,
	"filter":         true,
	"schedule":       true,
	"cron":           true,
	"interval":       true,
}

// Analyzer derives Records from workflow documents
type Analyzer struct {
	now func() time.Time
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

// Analyze reads and analyzes the document at path
func (a *Analyzer) Analyze(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, indexerr.New(indexerr.KindIO, "read", path, err)
	}
	return a.AnalyzeBytes(filepath.Base(path), data)
}

// AnalyzeBytes analyzes raw document bytes stored under filename
func (a *Analyzer) AnalyzeBytes(filename string, data []byte) (*Record, error) {
	return a.AnalyzeFingerprinted(filename, data, scanner.FingerprintBytes(data))
}

// AnalyzeFingerprinted analyzes data whose fingerprint the caller has already
// computed
func (a *Analyzer) AnalyzeFingerprinted(filename string, data []byte, hash string) (*Record, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, indexerr.New(indexerr.KindParse, "decode", filename, err)
	}

	rec := a.AnalyzeDocument(filename, doc)
	rec.FileHash = hash
	rec.FileSize = int64(len(data))
	return rec, nil
}

// AnalyzeDocument derives a Record from an already parsed document. FileHash
// and FileSize are left for the caller.
func (a *Analyzer) AnalyzeDocument(filename string, doc *Document) *Record {
	nodeCount := len(doc.Nodes)
	trigger := ClassifyTrigger(doc.Nodes)
	complexity := ClassifyComplexity(nodeCount)
	integrations := ExtractIntegrations(doc.Nodes)

	return &Record{
		Filename:     filename,
		Name:         ResolveName(doc.Name, filename),
		WorkflowID:   string(doc.ID),
		Active:       doc.Active,
		Description:  Describe(trigger, integrations, nodeCount, complexity),
		TriggerType:  trigger,
		Complexity:   complexity,
		NodeCount:    nodeCount,
		Integrations: integrations,
		Tags:         doc.TagNames(),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		AnalyzedAt:   a.now().UTC(),
	}
}

// ClassifyComplexity buckets a node count
func ClassifyComplexity(nodeCount int) ComplexityClass {
	switch {
	case nodeCount <= lowComplexityMax:
		return ComplexityLow
	case nodeCount <= mediumComplexityMax:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

// ClassifyTrigger walks nodes in document order and keeps the highest
// priority class signalled by any node type.
func ClassifyTrigger(nodes []Node) TriggerClass {
	best := TriggerManual
	for _, node := range nodes {
		if class := nodeTrigger(node.Type); class.priority() > best.priority() {
			best = class
		}
	}
	return best
}

func nodeTrigger(nodeType string) TriggerClass {
	t := strings.ToLower(nodeType)
	switch {
	case strings.Contains(t, "webhook"):
		return TriggerWebhook
	case strings.Contains(t, "cron"), strings.Contains(t, "schedule"):
		return TriggerScheduled
	case strings.Contains(t, "manualtrigger"):
		return TriggerManual
	case strings.Contains(t, "trigger"):
		return TriggerTriggered
	default:
		return TriggerManual
	}
}

// ExtractIntegrations returns the sorted, distinct service names referenced by
// node types of the form "<namespace>.<service>[.<operation>...]".
func ExtractIntegrations(nodes []Node) []string {
	seen := make(map[string]bool)
	integrations := make([]string, 0)

	for _, node := range nodes {
		service, ok := serviceSegment(node.Type)
		if !ok {
			continue
		}
		name := capitalize(service)
		if seen[name] {
			continue
		}
		seen[name] = true
		integrations = append(integrations, name)
	}

	sort.Strings(integrations)
	return integrations
}

func serviceSegment(nodeType string) (string, bool) {
	parts := strings.Split(nodeType, ".")
	if len(parts) < 2 {
		return "", false
	}

	service := strings.TrimSpace(parts[1])
	if lower := strings.ToLower(service); strings.HasSuffix(lower, "trigger") {
		service = service[:len(service)-len("trigger")]
	}
	if service == "" || reservedServices[strings.ToLower(service)] {
		return "", false
	}
	return service, true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Describe renders the generated description of a workflow
func Describe(trigger TriggerClass, integrations []string, nodeCount int, complexity ComplexityClass) string {
	var b strings.Builder
	b.WriteString(string(trigger))
	b.WriteString(" workflow")

	if len(integrations) > 0 {
		named := integrations
		if len(named) > describedIntegrations {
			named = named[:describedIntegrations]
		}
		b.WriteString(" integrating ")
		b.WriteString(strings.Join(named, ", "))
		if extra := len(integrations) - len(named); extra > 0 {
			fmt.Fprintf(&b, ", +%d more", extra)
		}
	}

	fmt.Fprintf(&b, " with %d nodes (%s complexity)", nodeCount, complexity)
	return b.String()
}
