package storage

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/flowindex/pkg/indexerr"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(filename, name string, trigger workflow.TriggerClass, nodes int, integrations ...string) *workflow.Record {
	if integrations == nil {
		integrations = []string{}
	}
	complexity := workflow.ClassifyComplexity(nodes)
	return &workflow.Record{
		Filename:     filename,
		Name:         name,
		WorkflowID:   "id-" + filename,
		Active:       nodes%2 == 0,
		Description:  workflow.Describe(trigger, integrations, nodes, complexity),
		TriggerType:  trigger,
		Complexity:   complexity,
		NodeCount:    nodes,
		Integrations: integrations,
		Tags:         []string{"tag-" + name},
		CreatedAt:    "2024-01-01T00:00:00.000Z",
		FileHash:     "hash-" + filename,
		FileSize:     int64(100 + nodes),
		AnalyzedAt:   time.Date(2026, 3, 4, 5, 6, 7, 123456789, time.UTC),
	}
}

func seedTestData(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	records := []*workflow.Record{
		testRecord("0001_slack_alerts.json", "Slack alerts", workflow.TriggerWebhook, 4, "Slack", "Webhook"),
		testRecord("0002_gmail_digest.json", "Gmail digest", workflow.TriggerScheduled, 8, "Gmail", "Slack"),
		testRecord("0003_notion_sync.json", "Notion sync", workflow.TriggerTriggered, 16, "Notion", "Airtable", "Slack", "Github"),
		testRecord("0004_manual_export.json", "Manual export", workflow.TriggerManual, 2),
		testRecord("0005_telegram_bot.json", "Telegram bot", workflow.TriggerWebhook, 11, "Telegram"),
	}
	for _, rec := range records {
		require.NoError(t, store.Upsert(ctx, rec))
	}
}

func requireConsistent(t *testing.T, store *Store) {
	t.Helper()
	c, err := store.Verify(context.Background())
	require.NoError(t, err)
	require.True(t, c.OK(), "shadow index out of sync: %+v", c)
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord("0001_slack_alerts.json", "Slack alerts", workflow.TriggerWebhook, 4, "Slack", "Webhook")
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, rec.Filename)
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.WorkflowID, got.WorkflowID)
	assert.Equal(t, rec.Active, got.Active)
	assert.Equal(t, rec.Description, got.Description)
	assert.Equal(t, workflow.TriggerWebhook, got.TriggerType)
	assert.Equal(t, workflow.ComplexityLow, got.Complexity)
	assert.Equal(t, 4, got.NodeCount)
	assert.Equal(t, []string{"Slack", "Webhook"}, got.Integrations)
	assert.Equal(t, rec.Tags, got.Tags)
	assert.Equal(t, rec.CreatedAt, got.CreatedAt)
	assert.Equal(t, rec.FileHash, got.FileHash)
	assert.Equal(t, rec.FileSize, got.FileSize)
	assert.True(t, rec.AnalyzedAt.Equal(got.AnalyzedAt))

	requireConsistent(t, store)
}

func TestStore_UpsertReplacesWholesale(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := testRecord("a.json", "Old name", workflow.TriggerManual, 3, "Slack")
	require.NoError(t, store.Upsert(ctx, first))

	second := testRecord("a.json", "New name", workflow.TriggerWebhook, 20, "Discord")
	second.Tags = []string{}
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.Get(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, "New name", got.Name)
	assert.Equal(t, workflow.ComplexityHigh, got.Complexity)
	assert.Equal(t, []string{"Discord"}, got.Integrations)
	assert.Empty(t, got.Tags)

	entries, err := store.ShadowEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "New name", entries[0].Name)
	assert.Equal(t, "Discord", entries[0].Integrations)

	// stale text no longer matches
	_, total, err := store.CountAndFetch(ctx, Query{Match: `"slack"*`})
	require.NoError(t, err)
	assert.Zero(t, total)

	requireConsistent(t, store)
}

func TestStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedTestData(t, store)

	deleted, err := store.Delete(ctx, "0002_gmail_digest.json")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "0002_gmail_digest.json")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.Get(ctx, "0002_gmail_digest.json")
	assert.True(t, indexerr.IsKind(err, indexerr.KindNotFound))

	n, err := store.DeleteMany(ctx, []string{"0001_slack_alerts.json", "missing.json", "0003_notion_sync.json"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := store.ListFilenames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0004_manual_export.json", "0005_telegram_bot.json"}, names)

	requireConsistent(t, store)
}

func TestStore_Fingerprint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, found, err := store.Fingerprint(ctx, "a.json")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Upsert(ctx, testRecord("a.json", "A", workflow.TriggerManual, 1)))

	hash, found, err := store.Fingerprint(ctx, "a.json")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hash-a.json", hash)
}

func TestStore_UpsertRequiresFilename(t *testing.T) {
	store := setupTestStore(t)
	err := store.Upsert(context.Background(), &workflow.Record{Name: "nameless"})
	assert.True(t, indexerr.IsKind(err, indexerr.KindStorage))
}

func TestStore_ShadowConsistencyUnderRandomWrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	triggers := workflow.TriggerClasses
	services := []string{"Slack", "Gmail", "Notion", "Airtable", "Telegram"}

	for i := 0; i < 150; i++ {
		filename := fmt.Sprintf("%02d.json", rng.Intn(12))
		switch rng.Intn(3) {
		case 0, 1:
			rec := testRecord(filename, fmt.Sprintf("name %d", i), triggers[rng.Intn(len(triggers))], rng.Intn(25),
				services[:rng.Intn(len(services))]...)
			require.NoError(t, store.Upsert(ctx, rec))
		case 2:
			_, err := store.Delete(ctx, filename)
			require.NoError(t, err)
		}

		if i%10 == 0 {
			requireConsistent(t, store)
		}
	}
	requireConsistent(t, store)

	names, err := store.ListFilenames(ctx)
	require.NoError(t, err)
	entries, err := store.ShadowEntries(ctx)
	require.NoError(t, err)

	shadowNames := make([]string, len(entries))
	for i, e := range entries {
		shadowNames[i] = e.Filename
	}
	assert.ElementsMatch(t, names, shadowNames)
}

func TestStore_CountAndFetch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedTestData(t, store)

	tests := []struct {
		name     string
		query    Query
		expected []string
	}{
		{
			name:     "all records ordered by name",
			query:    Query{},
			expected: []string{"Gmail digest", "Manual export", "Notion sync", "Slack alerts", "Telegram bot"},
		},
		{
			name:     "full text prefix",
			query:    Query{Match: `"slac"*`},
			expected: []string{"Gmail digest", "Notion sync", "Slack alerts"},
		},
		{
			name:     "full text conjunction",
			query:    Query{Match: `"slack"* AND "notion"*`},
			expected: []string{"Notion sync"},
		},
		{
			name:     "trigger filter",
			query:    Query{Filters: Filters{Trigger: workflow.TriggerWebhook}},
			expected: []string{"Slack alerts", "Telegram bot"},
		},
		{
			name:     "complexity filter",
			query:    Query{Filters: Filters{Complexity: workflow.ComplexityMedium}},
			expected: []string{"Gmail digest", "Telegram bot"},
		},
		{
			name:     "active only",
			query:    Query{Filters: Filters{ActiveOnly: true}},
			expected: []string{"Gmail digest", "Manual export", "Notion sync", "Slack alerts"},
		},
		{
			name:     "full text with filters",
			query:    Query{Match: `"slack"*`, Filters: Filters{Trigger: workflow.TriggerScheduled}},
			expected: []string{"Gmail digest"},
		},
		{
			name:     "tag text",
			query:    Query{Match: `"tag"*`, Filters: Filters{Complexity: workflow.ComplexityLow}},
			expected: []string{"Manual export", "Slack alerts"},
		},
		{
			name:     "no match",
			query:    Query{Match: `"zendesk"*`},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, total, err := store.CountAndFetch(ctx, tt.query)
			require.NoError(t, err)

			names := make([]string, len(records))
			for i, r := range records {
				names[i] = r.Name
			}
			assert.Equal(t, tt.expected, names)
			assert.Equal(t, len(tt.expected), total)
		})
	}
}

func TestStore_CountFetchAgreement(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedTestData(t, store)

	matches := []string{"", `"slack"*`, `"workflow"*`, `"t"`}
	filters := []Filters{
		{},
		{ActiveOnly: true},
		{Trigger: workflow.TriggerWebhook},
		{Complexity: workflow.ComplexityHigh},
		{Trigger: workflow.TriggerScheduled, Complexity: workflow.ComplexityMedium, ActiveOnly: true},
	}

	for _, m := range matches {
		for _, f := range filters {
			_, total, err := store.CountAndFetch(ctx, Query{Match: m, Filters: f, Limit: 1})
			require.NoError(t, err)

			all, allTotal, err := store.CountAndFetch(ctx, Query{Match: m, Filters: f, Limit: total, Offset: 0})
			require.NoError(t, err)
			assert.Equal(t, total, allTotal)
			if total > 0 {
				assert.Len(t, all, total, "match=%q filters=%+v", m, f)
			}
		}
	}
}

func TestStore_Pagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedTestData(t, store)

	page1, total, err := store.CountAndFetch(ctx, Query{Limit: 2, Offset: 0})
	require.NoError(t, err)
	page3, _, err := store.CountAndFetch(ctx, Query{Limit: 2, Offset: 4})
	require.NoError(t, err)
	beyond, beyondTotal, err := store.CountAndFetch(ctx, Query{Limit: 2, Offset: 10})
	require.NoError(t, err)

	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "Gmail digest", page1[0].Name)
	require.Len(t, page3, 1)
	assert.Equal(t, "Telegram bot", page3[0].Name)
	assert.Empty(t, beyond)
	assert.Equal(t, 5, beyondTotal)
}

func TestStore_StatsAndIntegrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	empty, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.True(t, empty.LastIndexedAt.IsZero())
	assert.Equal(t, 0, empty.ByTrigger["Webhook"])

	seedTestData(t, store)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 4, stats.Active)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 4+8+16+2+11, stats.TotalNodes)
	assert.Equal(t, 2, stats.ByTrigger["Webhook"])
	assert.Equal(t, 1, stats.ByTrigger["Manual"])
	assert.Equal(t, 2, stats.ByComplexity["Low"])
	assert.Equal(t, 2, stats.ByComplexity["Medium"])
	assert.Equal(t, 1, stats.ByComplexity["High"])
	assert.Equal(t, 7, stats.UniqueIntegrations)
	assert.True(t, time.Date(2026, 3, 4, 5, 6, 7, 123456789, time.UTC).Equal(stats.LastIndexedAt))

	integrations, err := store.Integrations(ctx)
	require.NoError(t, err)
	require.Len(t, integrations, 7)
	assert.Equal(t, IntegrationCount{Name: "Slack", Count: 3}, integrations[0])
	assert.Equal(t, "Airtable", integrations[1].Name)
}

func TestStore_VerifyAndRebuild(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedTestData(t, store)

	_, err := store.DB().ExecContext(ctx, `DELETE FROM workflows_fts WHERE filename = '0001_slack_alerts.json'`)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx, `UPDATE workflows SET name = 'Renamed' WHERE filename = '0002_gmail_digest.json'`)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx, `INSERT INTO workflows_fts (rowid, filename, name, description, integrations, tags) VALUES (999, 'ghost.json', '', '', '', '')`)
	require.NoError(t, err)

	c, err := store.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, c.OK())
	assert.Equal(t, []string{"0001_slack_alerts.json"}, c.Missing)
	assert.Equal(t, []string{"0002_gmail_digest.json"}, c.Mismatched)
	assert.Equal(t, []int64{999}, c.Orphaned)

	n, err := store.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	requireConsistent(t, store)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	ctx := context.Background()

	store, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, testRecord("a.json", "A", workflow.TriggerManual, 1)))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
	requireConsistent(t, reopened)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.True(t, indexerr.IsKind(err, indexerr.KindStorage))
}
