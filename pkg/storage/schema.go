package storage

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// schema creates the primary table, its lookup indexes and the FTS5 shadow
// index. The shadow index is a standalone table; rowid = workflows.id.
const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS workflows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    workflow_id TEXT NOT NULL DEFAULT '',
    active INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    trigger_type TEXT NOT NULL,
    complexity TEXT NOT NULL,
    node_count INTEGER NOT NULL DEFAULT 0,
    integrations TEXT NOT NULL DEFAULT '[]', -- JSON array
    tags TEXT NOT NULL DEFAULT '[]',         -- JSON array
    created_at TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL DEFAULT '',
    file_hash TEXT NOT NULL,
    file_size INTEGER NOT NULL DEFAULT 0,
    analyzed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflows_trigger_type ON workflows(trigger_type);
CREATE INDEX IF NOT EXISTS idx_workflows_complexity ON workflows(complexity);
CREATE INDEX IF NOT EXISTS idx_workflows_active ON workflows(active);
CREATE INDEX IF NOT EXISTS idx_workflows_node_count ON workflows(node_count);
CREATE INDEX IF NOT EXISTS idx_workflows_name ON workflows(name);

CREATE VIRTUAL TABLE IF NOT EXISTS workflows_fts USING fts5(
    filename,
    name,
    description,
    integrations,
    tags,
    tokenize='unicode61 remove_diacritics 2'
);
`

const recordColumns = `w.filename, w.name, w.workflow_id, w.active, w.description, w.trigger_type,
	w.complexity, w.node_count, w.integrations, w.tags, w.created_at, w.updated_at,
	w.file_hash, w.file_size, w.analyzed_at`
