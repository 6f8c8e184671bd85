package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // Pure Go SQLite driver with FTS5

	"github.com/platinummonkey/flowindex/pkg/indexerr"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

// timeLayout is fixed width so MAX(analyzed_at) orders chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var tracer = otel.Tracer("flowindex/storage")

// Store is the SQLite-backed index of workflow records
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at cfg.Path and applies the schema
func Open(ctx context.Context, cfg Config) (*Store, error) {
	defaults := DefaultConfig()
	if cfg.Path == "" {
		return nil, indexerr.New(indexerr.KindStorage, "open", "", errors.New("database path is required"))
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaults.MaxOpenConns
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaults.BusyTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, indexerr.New(indexerr.KindIO, "create database directory", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "open", cfg.Path, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, indexerr.New(indexerr.KindStorage, "ping", cfg.Path, err)
	}

	s := &Store{db: db, path: cfg.Path}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an already opened and migrated database
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func dsn(cfg Config) string {
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	return "file:" + cfg.Path + "?" + params.Encode()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return indexerr.New(indexerr.KindStorage, "migrate", s.path, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprint(SchemaVersion))
	if err != nil {
		return indexerr.New(indexerr.KindStorage, "migrate", s.path, err)
	}
	return nil
}

// DB returns the underlying database handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func fail(span trace.Span, op, path string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	if indexerr.KindOf(err) != indexerr.KindUnknown {
		return err
	}
	return indexerr.New(indexerr.KindStorage, op, path, err)
}

const upsertRecord = `
INSERT INTO workflows (
	filename, name, workflow_id, active, description, trigger_type, complexity,
	node_count, integrations, tags, created_at, updated_at, file_hash, file_size, analyzed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(filename) DO UPDATE SET
	name = excluded.name,
	workflow_id = excluded.workflow_id,
	active = excluded.active,
	description = excluded.description,
	trigger_type = excluded.trigger_type,
	complexity = excluded.complexity,
	node_count = excluded.node_count,
	integrations = excluded.integrations,
	tags = excluded.tags,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at,
	file_hash = excluded.file_hash,
	file_size = excluded.file_size,
	analyzed_at = excluded.analyzed_at`

const insertShadow = `INSERT INTO workflows_fts (rowid, filename, name, description, integrations, tags) VALUES (?, ?, ?, ?, ?, ?)`

// Upsert inserts or wholesale replaces the record for rec.Filename and its
// shadow row in one transaction
func (s *Store) Upsert(ctx context.Context, rec *workflow.Record) error {
	ctx, span := tracer.Start(ctx, "Store.Upsert",
		trace.WithAttributes(attribute.String("filename", rec.Filename)))
	defer span.End()

	if rec.Filename == "" {
		return fail(span, "upsert", "", errors.New("filename is required"))
	}

	integrations, err := json.Marshal(nonNil(rec.Integrations))
	if err != nil {
		return fail(span, "encode integrations", rec.Filename, err)
	}
	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return fail(span, "encode tags", rec.Filename, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(span, "begin", rec.Filename, err)
	}
	defer tx.Rollback()

	oldID, found, err := lookupID(ctx, tx, rec.Filename)
	if err != nil {
		return fail(span, "lookup", rec.Filename, err)
	}
	if found {
		if _, err := tx.ExecContext(ctx, `DELETE FROM workflows_fts WHERE rowid = ?`, oldID); err != nil {
			return fail(span, "delete shadow row", rec.Filename, err)
		}
	}

	_, err = tx.ExecContext(ctx, upsertRecord,
		rec.Filename,
		rec.Name,
		rec.WorkflowID,
		rec.Active,
		rec.Description,
		string(rec.TriggerType),
		string(rec.Complexity),
		rec.NodeCount,
		string(integrations),
		string(tags),
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.FileHash,
		rec.FileSize,
		rec.AnalyzedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fail(span, "write record", rec.Filename, err)
	}

	id, _, err := lookupID(ctx, tx, rec.Filename)
	if err != nil {
		return fail(span, "lookup", rec.Filename, err)
	}

	shadow := ShadowProjection(rec)
	if _, err := tx.ExecContext(ctx, insertShadow,
		id, shadow.Filename, shadow.Name, shadow.Description, shadow.Integrations, shadow.Tags); err != nil {
		return fail(span, "insert shadow row", rec.Filename, err)
	}

	if err := tx.Commit(); err != nil {
		return fail(span, "commit", rec.Filename, err)
	}
	span.SetAttributes(attribute.Bool("replaced", found))
	return nil
}

// Delete removes the record and its shadow row. It reports whether a record existed.
func (s *Store) Delete(ctx context.Context, filename string) (bool, error) {
	n, err := s.DeleteMany(ctx, []string{filename})
	return n > 0, err
}

// DeleteMany removes several records and their shadow rows in one transaction
// and returns how many existed
func (s *Store) DeleteMany(ctx context.Context, filenames []string) (int, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteMany",
		trace.WithAttributes(attribute.Int("filenames", len(filenames))))
	defer span.End()

	if len(filenames) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fail(span, "begin", "", err)
	}
	defer tx.Rollback()

	deleted := 0
	for _, filename := range filenames {
		id, found, err := lookupID(ctx, tx, filename)
		if err != nil {
			return 0, fail(span, "lookup", filename, err)
		}
		if !found {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM workflows_fts WHERE rowid = ?`, id); err != nil {
			return 0, fail(span, "delete shadow row", filename, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id); err != nil {
			return 0, fail(span, "delete record", filename, err)
		}
		deleted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fail(span, "commit", "", err)
	}
	return deleted, nil
}

func lookupID(ctx context.Context, tx *sql.Tx, filename string) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM workflows WHERE filename = ?`, filename).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Get returns the record for filename or a KindNotFound error
func (s *Store) Get(ctx context.Context, filename string) (*workflow.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM workflows w WHERE w.filename = ?`, filename)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, indexerr.New(indexerr.KindNotFound, "get", filename, nil)
	}
	if err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "get", filename, err)
	}
	return rec, nil
}

// Fingerprint returns the stored content fingerprint for filename
func (s *Store) Fingerprint(ctx context.Context, filename string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT file_hash FROM workflows WHERE filename = ?`, filename).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, indexerr.New(indexerr.KindStorage, "fingerprint", filename, err)
	}
	return hash, true, nil
}

// ListFilenames returns every indexed filename in ascending order
func (s *Store) ListFilenames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM workflows ORDER BY filename`)
	if err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "list filenames", "", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, indexerr.New(indexerr.KindStorage, "list filenames", "", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "list filenames", "", err)
	}
	return names, nil
}

// buildPredicate returns the FROM and WHERE clauses of q with a fresh argument
// list. It is called once for the count and once for the fetch.
func buildPredicate(q Query) (string, string, []interface{}) {
	from := "FROM workflows w"
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if q.Match != "" {
		from += " JOIN workflows_fts ON workflows_fts.rowid = w.id"
		conditions = append(conditions, "workflows_fts MATCH ?")
		args = append(args, q.Match)
	}
	if q.Filters.ActiveOnly {
		conditions = append(conditions, "w.active = 1")
	}
	if q.Filters.Trigger != "" {
		conditions = append(conditions, "w.trigger_type = ?")
		args = append(args, string(q.Filters.Trigger))
	}
	if q.Filters.Complexity != "" {
		conditions = append(conditions, "w.complexity = ?")
		args = append(args, string(q.Filters.Complexity))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	return from, where, args
}

// CountAndFetch returns one page of matching records ordered by name, and the
// total number of matches
func (s *Store) CountAndFetch(ctx context.Context, q Query) ([]*workflow.Record, int, error) {
	ctx, span := tracer.Start(ctx, "Store.CountAndFetch",
		trace.WithAttributes(
			attribute.Bool("fulltext", q.Match != ""),
			attribute.Int("limit", q.Limit),
			attribute.Int("offset", q.Offset),
		))
	defer span.End()

	from, where, countArgs := buildPredicate(q)
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+from+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fail(span, "count", "", classifyQueryErr(err))
	}
	span.SetAttributes(attribute.Int("total", total))

	records := make([]*workflow.Record, 0)
	if total == 0 {
		return records, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	from, where, fetchArgs := buildPredicate(q)
	fetchArgs = append(fetchArgs, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" "+from+where+" ORDER BY w.name ASC, w.filename ASC LIMIT ? OFFSET ?",
		fetchArgs...)
	if err != nil {
		return nil, 0, fail(span, "fetch", "", classifyQueryErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fail(span, "scan", "", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fail(span, "fetch", "", err)
	}
	return records, total, nil
}

// classifyQueryErr marks malformed match expressions as query errors
func classifyQueryErr(err error) error {
	if strings.Contains(err.Error(), "fts5: syntax error") || strings.Contains(err.Error(), "unterminated string") {
		return indexerr.New(indexerr.KindQuery, "match", "", err)
	}
	return err
}

// Stats aggregates counts over the whole index
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByTrigger:    make(map[string]int),
		ByComplexity: make(map[string]int),
	}
	for _, t := range workflow.TriggerClasses {
		stats.ByTrigger[string(t)] = 0
	}
	for _, c := range workflow.ComplexityClasses {
		stats.ByComplexity[string(c)] = 0
	}

	var lastIndexed string
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(active), 0), COALESCE(SUM(node_count), 0), COALESCE(MAX(analyzed_at), '')
		FROM workflows`).Scan(&stats.Total, &stats.Active, &stats.TotalNodes, &lastIndexed)
	if err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "stats", "", err)
	}
	stats.Inactive = stats.Total - stats.Active
	if lastIndexed != "" {
		stats.LastIndexedAt = parseTime(lastIndexed)
	}

	if err := s.groupCount(ctx, "trigger_type", stats.ByTrigger); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "complexity", stats.ByComplexity); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT j.value) FROM workflows w, json_each(w.integrations) j`).Scan(&stats.UniqueIntegrations)
	if err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "stats", "", err)
	}
	return stats, nil
}

func (s *Store) groupCount(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM workflows GROUP BY `+column)
	if err != nil {
		return indexerr.New(indexerr.KindStorage, "stats", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return indexerr.New(indexerr.KindStorage, "stats", column, err)
		}
		into[key] = count
	}
	if err := rows.Err(); err != nil {
		return indexerr.New(indexerr.KindStorage, "stats", column, err)
	}
	return nil
}

// Integrations lists every referenced integration with its usage count, most
// used first
func (s *Store) Integrations(ctx context.Context) ([]IntegrationCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.value, COUNT(*) AS uses
		FROM workflows w, json_each(w.integrations) j
		GROUP BY j.value
		ORDER BY uses DESC, j.value ASC`)
	if err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "integrations", "", err)
	}
	defer rows.Close()

	result := make([]IntegrationCount, 0)
	for rows.Next() {
		var ic IntegrationCount
		if err := rows.Scan(&ic.Name, &ic.Count); err != nil {
			return nil, indexerr.New(indexerr.KindStorage, "integrations", "", err)
		}
		result = append(result, ic)
	}
	if err := rows.Err(); err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "integrations", "", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*workflow.Record, error) {
	var (
		rec          workflow.Record
		trigger      string
		complexity   string
		integrations string
		tags         string
		analyzedAt   string
	)

	err := row.Scan(
		&rec.Filename,
		&rec.Name,
		&rec.WorkflowID,
		&rec.Active,
		&rec.Description,
		&trigger,
		&complexity,
		&rec.NodeCount,
		&integrations,
		&tags,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.FileHash,
		&rec.FileSize,
		&analyzedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.TriggerType = workflow.TriggerClass(trigger)
	rec.Complexity = workflow.ComplexityClass(complexity)
	rec.AnalyzedAt = parseTime(analyzedAt)

	rec.Integrations = []string{}
	if err := json.Unmarshal([]byte(integrations), &rec.Integrations); err != nil {
		return nil, fmt.Errorf("failed to decode integrations of %s: %w", rec.Filename, err)
	}
	rec.Tags = []string{}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of %s: %w", rec.Filename, err)
	}
	return &rec, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
