package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/flowindex/pkg/workflow"
)

// RecordReader provides read access to indexed records
type RecordReader interface {
	Get(ctx context.Context, filename string) (*workflow.Record, error)
	Fingerprint(ctx context.Context, filename string) (string, bool, error)
	ListFilenames(ctx context.Context) ([]string, error)
}

// RecordWriter keeps the primary table and the shadow index in sync
type RecordWriter interface {
	Upsert(ctx context.Context, rec *workflow.Record) error
	Delete(ctx context.Context, filename string) (bool, error)
	DeleteMany(ctx context.Context, filenames []string) (int, error)
}

// Searcher runs filtered, paginated queries
type Searcher interface {
	CountAndFetch(ctx context.Context, q Query) ([]*workflow.Record, int, error)
	Stats(ctx context.Context) (*Stats, error)
	Integrations(ctx context.Context) ([]IntegrationCount, error)
}

// Index is the full store surface used by the indexer and search service
type Index interface {
	RecordReader
	RecordWriter
	Searcher
}

var _ Index = (*Store)(nil)

// Config for the SQLite store
type Config struct {
	// Path of the database file
	Path string
	// MaxOpenConns bounds the connection pool; readers share it with the writer
	MaxOpenConns int
	// BusyTimeout is how long a connection waits for the write lock
	BusyTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Path:         "workflows.db",
		MaxOpenConns: 4,
		BusyTimeout:  5 * time.Second,
	}
}

// Filters narrow a query on the primary table. Zero values mean no filter.
type Filters struct {
	Trigger    workflow.TriggerClass
	Complexity workflow.ComplexityClass
	ActiveOnly bool
}

// Query is a count-and-fetch request. Limit <= 0 fetches every match.
type Query struct {
	Match   string
	Filters Filters
	Limit   int
	Offset  int
}

// Stats aggregates the whole index
type Stats struct {
	Total              int            `json:"total"`
	Active             int            `json:"active"`
	Inactive           int            `json:"inactive"`
	ByTrigger          map[string]int `json:"by_trigger"`
	ByComplexity       map[string]int `json:"by_complexity"`
	TotalNodes         int            `json:"total_nodes"`
	UniqueIntegrations int            `json:"unique_integrations"`
	LastIndexedAt      time.Time      `json:"last_indexed_at"`
}

// IntegrationCount is how many records reference an integration
type IntegrationCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
