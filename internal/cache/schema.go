package cache

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE streams (
	id           TEXT PRIMARY KEY,
	provider_id  TEXT NOT NULL,
	name         TEXT NOT NULL,
	stream_type  TEXT NOT NULL,
	icon         TEXT,
	last_updated TEXT
);
CREATE INDEX idx_streams_provider ON streams (provider_id);

CREATE TABLE items (
	id            TEXT PRIMARY KEY,
	stream_id     TEXT NOT NULL REFERENCES streams (id) ON DELETE CASCADE,
	title         TEXT NOT NULL,
	body          TEXT NOT NULL,
	author_name   TEXT,
	published     TEXT,
	updated       TEXT,
	url           TEXT,
	thumbnail_url TEXT,
	is_read       INTEGER NOT NULL DEFAULT 0,
	is_saved      INTEGER NOT NULL DEFAULT 0,
	tags          TEXT,
	inserted_at   TEXT NOT NULL
);
CREATE INDEX idx_items_stream ON items (stream_id);
CREATE INDEX idx_items_url ON items (url);
CREATE INDEX idx_items_saved ON items (is_saved);

CREATE VIRTUAL TABLE items_fts USING fts5(
	title, body_text, author_name, content='items', content_rowid='rowid'
);

CREATE TRIGGER items_fts_insert AFTER INSERT ON items BEGIN
	INSERT INTO items_fts (rowid, title, body_text, author_name)
	VALUES (new.rowid, new.title, new.body, new.author_name);
END;

CREATE TRIGGER items_fts_delete AFTER DELETE ON items BEGIN
	INSERT INTO items_fts (items_fts, rowid, title, body_text, author_name)
	VALUES ('delete', old.rowid, old.title, old.body, old.author_name);
END;

CREATE TRIGGER items_fts_update AFTER UPDATE ON items BEGIN
	INSERT INTO items_fts (items_fts, rowid, title, body_text, author_name)
	VALUES ('delete', old.rowid, old.title, old.body, old.author_name);
	INSERT INTO items_fts (rowid, title, body_text, author_name)
	VALUES (new.rowid, new.title, new.body, new.author_name);
END;

CREATE TABLE sync_state (
	provider_id TEXT PRIMARY KEY,
	last_sync   TEXT,
	last_error  TEXT,
	in_progress INTEGER NOT NULL DEFAULT 0
);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE sync_state ADD COLUMN error_count INTEGER NOT NULL DEFAULT 0;
`,
	},
	{
		// body_text holds the plain-text projection (cache.PlainTextProjection)
		// of an item's content, separate from body (the JSON content envelope
		// preserved for round-trip). The FTS index is rebuilt against
		// body_text so search ranks on actual prose, not JSON punctuation.
		version: 3,
		sql: `
ALTER TABLE items ADD COLUMN body_text TEXT NOT NULL DEFAULT '';

DROP TRIGGER items_fts_insert;
DROP TRIGGER items_fts_delete;
DROP TRIGGER items_fts_update;
DROP TABLE items_fts;

CREATE VIRTUAL TABLE items_fts USING fts5(
	title, body_text, author_name, content='items', content_rowid='rowid'
);
INSERT INTO items_fts (rowid, title, body_text, author_name)
	SELECT rowid, title, body_text, author_name FROM items;

CREATE TRIGGER items_fts_insert AFTER INSERT ON items BEGIN
	INSERT INTO items_fts (rowid, title, body_text, author_name)
	VALUES (new.rowid, new.title, new.body_text, new.author_name);
END;

CREATE TRIGGER items_fts_delete AFTER DELETE ON items BEGIN
	INSERT INTO items_fts (items_fts, rowid, title, body_text, author_name)
	VALUES ('delete', old.rowid, old.title, old.body_text, old.author_name);
END;

CREATE TRIGGER items_fts_update AFTER UPDATE ON items BEGIN
	INSERT INTO items_fts (items_fts, rowid, title, body_text, author_name)
	VALUES ('delete', old.rowid, old.title, old.body_text, old.author_name);
	INSERT INTO items_fts (rowid, title, body_text, author_name)
	VALUES (new.rowid, new.title, new.body_text, new.author_name);
END;
`,
	},
	{
		version: 4,
		sql: `
ALTER TABLE items ADD COLUMN is_archived INTEGER NOT NULL DEFAULT 0;
CREATE INDEX idx_items_archived ON items (is_archived);
`,
	},
}

func (c *Cache) migrate() error {
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var applied []int
	if err := c.db.Select(&applied, `SELECT version FROM schema_version ORDER BY version`); err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.version] {
			continue
		}
		if err := c.applyMigration(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) applyMigration(m migration) error {
	tx, err := c.db.Beginx()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(m.sql); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
