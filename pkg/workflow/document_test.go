package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_Defaults(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"name": "Empty"}`))
	require.NoError(t, err)

	assert.Equal(t, "Empty", doc.Name)
	assert.NotNil(t, doc.Nodes)
	assert.Empty(t, doc.Nodes)
	assert.NotNil(t, doc.Tags)
	assert.NotNil(t, doc.Connections)
	assert.False(t, doc.Active)
	assert.Empty(t, doc.TagNames())
}

func TestParseDocument_Fields(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"id": 42,
		"name": "Orders",
		"active": true,
		"createdAt": "2024-01-01T00:00:00.000Z",
		"updatedAt": "2024-02-01T00:00:00.000Z",
		"nodes": [{"id": "a", "name": "Hook", "type": "n8n-nodes-base.webhook", "typeVersion": 1.1}],
		"connections": {"Hook": {"main": [[{"node": "Next", "type": "main", "index": 0}]]}},
		"tags": ["sales", {"id": "7", "name": "orders"}, {"id": "9"}, null, 3]
	}`))
	require.NoError(t, err)

	assert.Equal(t, FlexibleID("42"), doc.ID)
	assert.True(t, doc.Active)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", doc.CreatedAt)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "n8n-nodes-base.webhook", doc.Nodes[0].Type)
	assert.Contains(t, doc.Connections, "Hook")
	assert.Equal(t, []string{"sales", "orders", "9", "3"}, doc.TagNames())
}

func TestParseDocument_StringID(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"id": "abc-123", "nodes": []}`))
	require.NoError(t, err)
	assert.Equal(t, FlexibleID("abc-123"), doc.ID)
}

func TestResolveName(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		filename string
		expected string
	}{
		{"declared wins", "Daily Slack digest", "0001_slack.json", "Daily Slack digest"},
		{"empty", "  ", "0001_slack_daily_digest.json", "Slack Daily Digest"},
		{"duplicates stem", "0001_Slack_Digest", "0001_Slack_Digest.json", "Slack Digest"},
		{"placeholder", "My workflow", "0003_gmail-to-notion.json", "Gmail To Notion"},
		{"numbered placeholder", "My workflow 7", "0004_x.json", "X"},
		{"untitled", "Untitled workflow", "reports.json", "Reports"},
		{"numeric only stem", "", "1234.json", "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveName(tt.declared, tt.filename))
		})
	}
}

func TestParseClasses(t *testing.T) {
	trigger, ok := ParseTriggerClass("webhook")
	assert.True(t, ok)
	assert.Equal(t, TriggerWebhook, trigger)

	_, ok = ParseTriggerClass("Complex")
	assert.False(t, ok)

	complexity, ok := ParseComplexityClass("HIGH")
	assert.True(t, ok)
	assert.Equal(t, ComplexityHigh, complexity)

	_, ok = ParseComplexityClass("")
	assert.False(t, ok)
}
