package storage

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/platinummonkey/flowindex/pkg/indexerr"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

// ShadowRow is the searchable text of one record as stored in workflows_fts
type ShadowRow struct {
	RowID        int64  `json:"rowid"`
	Filename     string `json:"filename"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Integrations string `json:"integrations"`
	Tags         string `json:"tags"`
}

// ShadowProjection computes the shadow row content of a record. RowID is left
// to the caller.
func ShadowProjection(rec *workflow.Record) ShadowRow {
	return ShadowRow{
		Filename:     rec.Filename,
		Name:         rec.Name,
		Description:  rec.Description,
		Integrations: strings.Join(rec.Integrations, " "),
		Tags:         strings.Join(rec.Tags, " "),
	}
}

func (r ShadowRow) sameContent(o ShadowRow) bool {
	return r.Filename == o.Filename &&
		r.Name == o.Name &&
		r.Description == o.Description &&
		r.Integrations == o.Integrations &&
		r.Tags == o.Tags
}

// ShadowEntries returns every row of the shadow index ordered by rowid
func (s *Store) ShadowEntries(ctx context.Context) ([]ShadowRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, filename, name, description, integrations, tags FROM workflows_fts ORDER BY rowid`)
	if err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "read shadow index", "", err)
	}
	defer rows.Close()

	entries := make([]ShadowRow, 0)
	for rows.Next() {
		var r ShadowRow
		if err := rows.Scan(&r.RowID, &r.Filename, &r.Name, &r.Description, &r.Integrations, &r.Tags); err != nil {
			return nil, indexerr.New(indexerr.KindStorage, "read shadow index", "", err)
		}
		entries = append(entries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "read shadow index", "", err)
	}
	return entries, nil
}

// projections returns the expected shadow row of every primary record keyed by id
func projections(ctx context.Context, q queryer) (map[int64]ShadowRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT w.id, `+recordColumns+` FROM workflows w`)
	if err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "read records", "", err)
	}
	defer rows.Close()

	expected := make(map[int64]ShadowRow)
	for rows.Next() {
		var id int64
		rec, err := scanRecord(idScanner{rows: rows, id: &id})
		if err != nil {
			return nil, indexerr.New(indexerr.KindStorage, "read records", "", err)
		}
		row := ShadowProjection(rec)
		row.RowID = id
		expected[id] = row
	}
	if err := rows.Err(); err != nil {
		return nil, indexerr.New(indexerr.KindStorage, "read records", "", err)
	}
	return expected, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// idScanner prepends the id column to a record scan
type idScanner struct {
	rows rowScanner
	id   *int64
}

func (s idScanner) Scan(dest ...interface{}) error {
	return s.rows.Scan(append([]interface{}{s.id}, dest...)...)
}

// Consistency compares the shadow index with the projection of the primary table
type Consistency struct {
	Records    int      `json:"records"`
	ShadowRows int      `json:"shadow_rows"`
	Missing    []string `json:"missing"`    // records without a shadow row
	Orphaned   []int64  `json:"orphaned"`   // shadow rows without a record
	Mismatched []string `json:"mismatched"` // shadow rows whose text differs from the record
}

// OK reports whether the shadow index is exactly the projection of the primary table
func (c *Consistency) OK() bool {
	return c.Records == c.ShadowRows && len(c.Missing) == 0 && len(c.Orphaned) == 0 && len(c.Mismatched) == 0
}

// Verify checks the shadow index against the primary table
func (s *Store) Verify(ctx context.Context) (*Consistency, error) {
	expected, err := projections(ctx, s.db)
	if err != nil {
		return nil, err
	}
	actual, err := s.ShadowEntries(ctx)
	if err != nil {
		return nil, err
	}

	c := &Consistency{
		Records:    len(expected),
		ShadowRows: len(actual),
		Missing:    []string{},
		Orphaned:   []int64{},
		Mismatched: []string{},
	}

	seen := make(map[int64]bool, len(actual))
	for _, row := range actual {
		want, ok := expected[row.RowID]
		if !ok || seen[row.RowID] {
			c.Orphaned = append(c.Orphaned, row.RowID)
			continue
		}
		seen[row.RowID] = true
		if !want.sameContent(row) {
			c.Mismatched = append(c.Mismatched, want.Filename)
		}
	}
	for id, want := range expected {
		if !seen[id] {
			c.Missing = append(c.Missing, want.Filename)
		}
	}

	sort.Strings(c.Missing)
	sort.Strings(c.Mismatched)
	return c, nil
}

// Rebuild regenerates the whole shadow index from the primary table in one
// transaction
func (s *Store) Rebuild(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, indexerr.New(indexerr.KindStorage, "rebuild", "", err)
	}
	defer tx.Rollback()

	expected, err := projections(ctx, tx)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflows_fts`); err != nil {
		return 0, indexerr.New(indexerr.KindStorage, "rebuild", "", err)
	}
	for _, row := range expected {
		if _, err := tx.ExecContext(ctx, insertShadow,
			row.RowID, row.Filename, row.Name, row.Description, row.Integrations, row.Tags); err != nil {
			return 0, indexerr.New(indexerr.KindStorage, "rebuild", row.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, indexerr.New(indexerr.KindStorage, "rebuild", "", err)
	}
	return len(expected), nil
}
