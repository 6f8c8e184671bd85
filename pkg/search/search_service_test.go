package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/flowindex/pkg/indexerr"
	"github.com/platinummonkey/flowindex/pkg/storage"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

var testDocuments = map[string]string{
	"0001_slack_alerts.json": `{
		"id": 1, "name": "Slack alerts", "active": true,
		"nodes": [
			{"id": "a", "name": "Hook", "type": "n8n-nodes-base.webhook"},
			{"id": "b", "name": "Post", "type": "n8n-nodes-base.slack"}
		],
		"tags": ["alerts"]
	}`,
	"0002_gmail_digest.json": `{
		"id": "wf-2", "name": "My workflow", "active": false,
		"nodes": [
			{"name": "Every morning", "type": "n8n-nodes-base.scheduleTrigger"},
			{"name": "Fetch mail", "type": "n8n-nodes-base.gmail"},
			{"name": "Notify", "type": "n8n-nodes-base.slack"}
		],
		"tags": [{"id": "7", "name": "digest"}]
	}`,
	"0003_manual_export.json": `{
		"name": "Manual export", "active": true,
		"nodes": [
			{"name": "Start", "type": "n8n-nodes-base.manualTrigger"},
			{"name": "Sheet", "type": "n8n-nodes-base.googleSheets"}
		]
	}`,
}

// setupTestStore opens a fresh SQLite store under the test's temp dir
func setupTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "search.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedTestData analyzes and stores the test documents
func seedTestData(t *testing.T, store *storage.Store) {
	t.Helper()
	analyzer := workflow.NewAnalyzer()
	for filename, doc := range testDocuments {
		rec, err := analyzer.AnalyzeBytes(filename, []byte(doc))
		require.NoError(t, err)
		require.NoError(t, store.Upsert(context.Background(), rec))
	}
}

func setupTestService(t *testing.T, cache ResultCache) (*Service, *storage.Store) {
	t.Helper()
	store := setupTestStore(t)
	seedTestData(t, store)
	return NewService(store, cache, nil), store
}

func names(records []*workflow.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Name)
	}
	return out
}

func TestService_Search(t *testing.T) {
	service, _ := setupTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		req       Request
		wantNames []string
		wantTotal int
	}{
		{
			name:      "empty query matches all in name order",
			req:       Request{},
			wantNames: []string{"Gmail Digest", "Manual export", "Slack alerts"},
			wantTotal: 3,
		},
		{
			name:      "term matches name and integrations",
			req:       Request{Query: "slack"},
			wantNames: []string{"Gmail Digest", "Slack alerts"},
			wantTotal: 2,
		},
		{
			name:      "prefix match",
			req:       Request{Query: "gm"},
			wantNames: []string{"Gmail Digest"},
			wantTotal: 1,
		},
		{
			name:      "phrase",
			req:       Request{Query: `"slack alerts"`},
			wantNames: []string{"Slack alerts"},
			wantTotal: 1,
		},
		{
			name:      "operators are inert",
			req:       Request{Query: "slack* AND (NOT"},
			wantNames: []string{},
			wantTotal: 0,
		},
		{
			name:      "query that sanitizes away matches all",
			req:       Request{Query: "*** ()"},
			wantNames: []string{"Gmail Digest", "Manual export", "Slack alerts"},
			wantTotal: 3,
		},
		{
			name:      "trigger filter is case-insensitive",
			req:       Request{Trigger: "WEBHOOK"},
			wantNames: []string{"Slack alerts"},
			wantTotal: 1,
		},
		{
			name:      "all means no filter",
			req:       Request{Trigger: "all", Complexity: "All"},
			wantNames: []string{"Gmail Digest", "Manual export", "Slack alerts"},
			wantTotal: 3,
		},
		{
			name:      "complexity filter",
			req:       Request{Complexity: "medium"},
			wantNames: []string{},
			wantTotal: 0,
		},
		{
			name:      "active only",
			req:       Request{ActiveOnly: true},
			wantNames: []string{"Manual export", "Slack alerts"},
			wantTotal: 2,
		},
		{
			name:      "text and filter combined",
			req:       Request{Query: "slack", Trigger: "scheduled"},
			wantNames: []string{"Gmail Digest"},
			wantTotal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := service.Search(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, resp.Total)
			assert.Equal(t, tt.wantNames, names(resp.Workflows))
		})
	}
}

func TestService_Search_InvalidFilters(t *testing.T) {
	service, _ := setupTestService(t, nil)
	ctx := context.Background()

	_, err := service.Search(ctx, Request{Trigger: "hourly"})
	require.Error(t, err)
	assert.True(t, indexerr.IsKind(err, indexerr.KindQuery))

	_, err = service.Search(ctx, Request{Complexity: "extreme"})
	require.Error(t, err)
	assert.True(t, indexerr.IsKind(err, indexerr.KindQuery))
}

func TestService_Search_Pagination(t *testing.T) {
	service, _ := setupTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		req         Request
		wantPage    int
		wantPerPage int
		wantPages   int
		wantCount   int
	}{
		{"defaults", Request{}, 1, DefaultPerPage, 1, 3},
		{"second page", Request{Page: 2, PerPage: 2}, 2, 2, 2, 1},
		{"page past the end", Request{Page: 9, PerPage: 2}, 9, 2, 2, 0},
		{"negative page", Request{Page: -3, PerPage: 2}, 1, 2, 2, 2},
		{"per page clamped high", Request{PerPage: 500}, 1, MaxPerPage, 1, 3},
		{"per page clamped low", Request{PerPage: -4}, 1, 1, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := service.Search(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, 3, resp.Total)
			assert.Equal(t, tt.wantPage, resp.Page)
			assert.Equal(t, tt.wantPerPage, resp.PerPage)
			assert.Equal(t, tt.wantPages, resp.Pages)
			assert.Len(t, resp.Workflows, tt.wantCount)
		})
	}
}

func TestService_Search_NoResults(t *testing.T) {
	service, _ := setupTestService(t, nil)

	resp, err := service.Search(context.Background(), Request{Query: "nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
	assert.Equal(t, 0, resp.Pages)
	assert.NotNil(t, resp.Workflows)
	assert.Equal(t, "all", resp.Filters.Trigger)
	assert.Equal(t, "all", resp.Filters.Complexity)
}

func TestService_Search_EchoesNormalizedRequest(t *testing.T) {
	service, _ := setupTestService(t, nil)

	resp, err := service.Search(context.Background(), Request{Query: "  slack  ", Trigger: "webhook"})
	require.NoError(t, err)
	assert.Equal(t, "slack", resp.Query)
	assert.Equal(t, `"slack"*`, resp.Match)
	assert.Equal(t, "Webhook", resp.Filters.Trigger)
}

func TestService_EndToEndRecord(t *testing.T) {
	service, _ := setupTestService(t, nil)
	ctx := context.Background()

	rec, err := service.GetByFilename(ctx, "0002_gmail_digest.json")
	require.NoError(t, err)

	assert.Equal(t, "Gmail Digest", rec.Name)
	assert.Equal(t, "wf-2", rec.WorkflowID)
	assert.False(t, rec.Active)
	assert.Equal(t, workflow.TriggerScheduled, rec.TriggerType)
	assert.Equal(t, workflow.ComplexityLow, rec.Complexity)
	assert.Equal(t, []string{"Gmail", "Slack"}, rec.Integrations)
	assert.Equal(t, []string{"digest"}, rec.Tags)
	assert.Equal(t, "Scheduled workflow integrating Gmail, Slack with 3 nodes (Low complexity)", rec.Description)
	assert.Len(t, rec.FileHash, 64)
}

func TestService_GetByFilename_NotFound(t *testing.T) {
	service, _ := setupTestService(t, nil)

	_, err := service.GetByFilename(context.Background(), "missing.json")
	require.Error(t, err)
	assert.True(t, indexerr.IsKind(err, indexerr.KindNotFound))
}

func TestService_Stats(t *testing.T) {
	service, _ := setupTestService(t, nil)

	stats, err := service.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 7, stats.TotalNodes)
	assert.Equal(t, 1, stats.ByTrigger["Webhook"])
	assert.Equal(t, 1, stats.ByTrigger["Scheduled"])
	assert.Equal(t, 1, stats.ByTrigger["Manual"])
	assert.Equal(t, 0, stats.ByTrigger["Triggered"])
	assert.Equal(t, 3, stats.ByComplexity["Low"])
	// Slack, Webhook, Gmail, GoogleSheets
	assert.Equal(t, 4, stats.UniqueIntegrations)
	assert.False(t, stats.LastIndexedAt.IsZero())
}

func TestService_Integrations(t *testing.T) {
	service, _ := setupTestService(t, nil)

	integrations, err := service.Integrations(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, integrations)
	assert.Equal(t, storage.IntegrationCount{Name: "Slack", Count: 2}, integrations[0])
}

func TestService_CacheUntilInvalidated(t *testing.T) {
	cache := NewLRUCache(16, 0)
	service, store := setupTestService(t, cache)
	ctx := context.Background()

	first, err := service.Search(ctx, Request{Query: "slack"})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 1, cache.Len())

	removed, err := store.Delete(ctx, "0002_gmail_digest.json")
	require.NoError(t, err)
	require.True(t, removed)

	cached, err := service.Search(ctx, Request{Query: "slack"})
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Total, "cached response should be served until invalidation")

	service.Invalidate(ctx)
	assert.Equal(t, 0, cache.Len())

	fresh, err := service.Search(ctx, Request{Query: "slack"})
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Total)
}

func TestService_SearchDuringOpenWriteTransaction(t *testing.T) {
	service, store := setupTestService(t, nil)
	ctx := context.Background()

	tx, err := store.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `UPDATE workflows SET name = 'Renamed' WHERE filename = ?`, "0001_slack_alerts.json")
	require.NoError(t, err)

	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	start := time.Now()
	resp, err := service.Search(readCtx, Request{Query: "slack"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	// readers see the last committed state
	assert.Equal(t, 2, resp.Total)
	assert.NotContains(t, names(resp.Workflows), "Renamed")

	stats, err := service.Stats(readCtx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)

	require.NoError(t, tx.Commit())
	rec, err := service.GetByFilename(ctx, "0001_slack_alerts.json")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", rec.Name)
}
