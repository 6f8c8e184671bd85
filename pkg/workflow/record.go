package workflow

import (
	"strings"
	"time"
)

// TriggerClass is how a workflow starts executing
type TriggerClass string

const (
	TriggerManual    TriggerClass = "Manual"
	TriggerWebhook   TriggerClass = "Webhook"
	TriggerScheduled TriggerClass = "Scheduled"
	TriggerTriggered TriggerClass = "Triggered"
)

// TriggerClasses lists every trigger class, lowest priority first
var TriggerClasses = []TriggerClass{TriggerManual, TriggerTriggered, TriggerScheduled, TriggerWebhook}

// priority orders trigger classes; a higher value wins during classification
func (t TriggerClass) priority() int {
	switch t {
	case TriggerWebhook:
		return 3
	case TriggerScheduled:
		return 2
	case TriggerTriggered:
		return 1
	default:
		return 0
	}
}

// ParseTriggerClass resolves a trigger class name case-insensitively
func ParseTriggerClass(s string) (TriggerClass, bool) {
	for _, t := range TriggerClasses {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return "", false
}

// ComplexityClass is a size bucket derived from node count
type ComplexityClass string

const (
	ComplexityLow    ComplexityClass = "Low"
	ComplexityMedium ComplexityClass = "Medium"
	ComplexityHigh   ComplexityClass = "High"
)

// ComplexityClasses lists every complexity class in ascending order
var ComplexityClasses = []ComplexityClass{ComplexityLow, ComplexityMedium, ComplexityHigh}

// ParseComplexityClass resolves a complexity class name case-insensitively
func ParseComplexityClass(s string) (ComplexityClass, bool) {
	for _, c := range ComplexityClasses {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Record is the indexed metadata of one workflow file. It is replaced
// wholesale on every reanalysis.
type Record struct {
	Filename     string          `json:"filename"`
	Name         string          `json:"name"`
	WorkflowID   string          `json:"workflow_id"`
	Active       bool            `json:"active"`
	Description  string          `json:"description"`
	TriggerType  TriggerClass    `json:"trigger_type"`
	Complexity   ComplexityClass `json:"complexity"`
	NodeCount    int             `json:"node_count"`
	Integrations []string        `json:"integrations"`
	Tags         []string        `json:"tags"`
	CreatedAt    string          `json:"created_at,omitempty"`
	UpdatedAt    string          `json:"updated_at,omitempty"`
	FileHash     string          `json:"file_hash"`
	FileSize     int64           `json:"file_size"`
	AnalyzedAt   time.Time       `json:"analyzed_at"`
}
