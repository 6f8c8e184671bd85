package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/flowindex/pkg/storage"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

var benchmarkServices = []string{"slack", "gmail", "notion", "telegram", "googleSheets", "airtable", "github", "jira"}

// setupBenchmarkStore seeds n generated workflows
func setupBenchmarkStore(b *testing.B, n int) *storage.Store {
	b.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.Config{Path: filepath.Join(b.TempDir(), "bench.db")})
	if err != nil {
		b.Fatalf("Could not open store: %v", err)
	}
	b.Cleanup(func() { store.Close() })

	analyzer := workflow.NewAnalyzer()
	for i := 0; i < n; i++ {
		first := benchmarkServices[i%len(benchmarkServices)]
		second := benchmarkServices[(i/len(benchmarkServices))%len(benchmarkServices)]
		doc := fmt.Sprintf(`{"name":"Workflow %d %s to %s","active":%t,"nodes":[
			{"name":"Hook","type":"n8n-nodes-base.webhook"},
			{"name":"A","type":"n8n-nodes-base.%s"},
			{"name":"B","type":"n8n-nodes-base.%s"}]}`, i, first, second, i%2 == 0, first, second)

		rec, err := analyzer.AnalyzeBytes(fmt.Sprintf("%04d_%s.json", i, first), []byte(doc))
		if err != nil {
			b.Fatalf("Failed to analyze workflow %d: %v", i, err)
		}
		if err := store.Upsert(ctx, rec); err != nil {
			b.Fatalf("Failed to store workflow %d: %v", i, err)
		}
	}
	return store
}

// BenchmarkSearch benchmarks full-text search without a result cache
func BenchmarkSearch(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping benchmark in short mode")
	}

	service := NewService(setupBenchmarkStore(b, 1000), nil, nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := service.Search(ctx, Request{Query: "slack notion", ActiveOnly: true}); err != nil {
			b.Errorf("Search failed: %v", err)
		}
	}
}

// BenchmarkSearchWithCache benchmarks repeated searches served by the LRU cache
func BenchmarkSearchWithCache(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping benchmark in short mode")
	}

	service := NewService(setupBenchmarkStore(b, 1000), NewLRUCache(128, time.Minute), nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := service.Search(ctx, Request{Query: "slack notion", ActiveOnly: true}); err != nil {
			b.Errorf("Search failed: %v", err)
		}
	}
}

// BenchmarkListAll benchmarks paging through the unfiltered listing
func BenchmarkListAll(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping benchmark in short mode")
	}

	service := NewService(setupBenchmarkStore(b, 1000), nil, nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := service.Search(ctx, Request{Page: i%50 + 1, PerPage: 20}); err != nil {
			b.Errorf("Search failed: %v", err)
		}
	}
}
