package index

// schema is applied on every open via CREATE TABLE/INDEX IF NOT EXISTS,
// the same idempotent-bootstrap style as BeadsLog/internal/storage/sqlite/schema.go.
// It covers every table spec §6 names as the index's minimum schema.
const schema = `
CREATE TABLE IF NOT EXISTS statuses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    is_closed INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sequences (
    type TEXT PRIMARY KEY,
    base_type TEXT NOT NULL,
    current_value INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS type_fields (
    type TEXT NOT NULL,
    field TEXT NOT NULL,
    PRIMARY KEY (type, field)
);

-- Items table: the relational projection of the Markdown file of record
-- for (type, id). tags and related are also denormalised here as JSON for
-- cheap list/get_stats reads; item_tags and related_items remain the
-- normalised source for joins and graph traversal (spec §3.2 invariant 3).
CREATE TABLE IF NOT EXISTS items (
    type TEXT NOT NULL,
    id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL DEFAULT 'medium',
    status_id INTEGER NOT NULL,
    start_date TEXT,
    end_date TEXT,
    start_time TEXT,
    tags_json TEXT NOT NULL DEFAULT '[]',
    related_json TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (type, id),
    FOREIGN KEY (status_id) REFERENCES statuses(id)
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status_id);
CREATE INDEX IF NOT EXISTS idx_items_type ON items(type);
CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at);

CREATE TABLE IF NOT EXISTS item_tags (
    item_type TEXT NOT NULL,
    item_id TEXT NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (item_type, item_id, tag_id),
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag_id);

CREATE TABLE IF NOT EXISTS related_items (
    source_type TEXT NOT NULL,
    source_id TEXT NOT NULL,
    target_type TEXT NOT NULL,
    target_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (source_type, source_id, target_type, target_id)
);

CREATE INDEX IF NOT EXISTS idx_related_source ON related_items(source_type, source_id);
CREATE INDEX IF NOT EXISTS idx_related_target ON related_items(target_type, target_id);

CREATE TABLE IF NOT EXISTS current_state (
    version INTEGER PRIMARY KEY AUTOINCREMENT,
    content TEXT NOT NULL DEFAULT '',
    tags_json TEXT NOT NULL DEFAULT '[]',
    metadata_json TEXT NOT NULL DEFAULT '{}',
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS db_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- items_fts is the virtual full-text table over type, title, description,
-- content and tags (spec §4.8). It stores its own copy of the indexed
-- text keyed by rowid and is manually synchronised by the index
-- synchroniser rather than via SQLite triggers, so one code path
-- (upsertFTS/deleteFTS, called from UpsertItem/DeleteItem) is the only writer and failures surface through the same error taxonomy
-- as everything else instead of being swallowed inside a trigger.
CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
    type, title, description, content, tags,
    tokenize = 'porter unicode61'
);

-- items_fts_map keeps the stable rowid <-> (type,id) mapping items_fts
-- needs, since fts5 rowids are plain integers and items' natural key is
-- composite.
CREATE TABLE IF NOT EXISTS items_fts_map (
    item_type TEXT NOT NULL,
    item_id TEXT NOT NULL,
    fts_rowid INTEGER NOT NULL UNIQUE,
    PRIMARY KEY (item_type, item_id)
);
`
