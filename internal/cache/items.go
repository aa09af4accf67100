package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/raibid-labs/scryhub/internal/domain"
)

const itemColumns = `id, stream_id, title, body, author_name, published, updated, url, thumbnail_url, is_read, is_saved, is_archived, tags`

type itemRow struct {
	ID           string         `db:"id"`
	StreamID     string         `db:"stream_id"`
	Title        string         `db:"title"`
	Body         string         `db:"body"`
	AuthorName   sql.NullString `db:"author_name"`
	Published    sql.NullString `db:"published"`
	Updated      sql.NullString `db:"updated"`
	URL          sql.NullString `db:"url"`
	ThumbnailURL sql.NullString `db:"thumbnail_url"`
	IsRead       bool           `db:"is_read"`
	IsSaved      bool           `db:"is_saved"`
	IsArchived   bool           `db:"is_archived"`
	Tags         sql.NullString `db:"tags"`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func parseTimestamp(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r itemRow) toDomain() (domain.Item, error) {
	// r.Body already holds the {"kind","value"} content envelope (see
	// UpsertItems); re-marshal it alongside the other columns into the same
	// shape domain.Item.UnmarshalJSON expects rather than hand-assembling
	// JSON text.
	full := fmt.Sprintf(`{"id":%s,"stream_id":%s,"title":%s,"content":%s,"is_read":%v,"is_saved":%v,"is_archived":%v}`,
		mustJSON(r.ID), mustJSON(r.StreamID), mustJSON(r.Title), r.Body, r.IsRead, r.IsSaved, r.IsArchived)
	var it domain.Item
	if err := json.Unmarshal([]byte(full), &it); err != nil {
		return domain.Item{}, fmt.Errorf("decode item %s: %w", r.ID, err)
	}
	if r.AuthorName.Valid {
		it.Author = &domain.Author{Name: r.AuthorName.String}
	}
	published, err := parseTimestamp(r.Published)
	if err != nil {
		return domain.Item{}, err
	}
	it.Published = published
	updated, err := parseTimestamp(r.Updated)
	if err != nil {
		return domain.Item{}, err
	}
	it.Updated = updated
	if r.URL.Valid {
		u := r.URL.String
		it.URL = &u
	}
	if r.ThumbnailURL.Valid {
		u := r.ThumbnailURL.String
		it.ThumbnailURL = &u
	}
	if r.Tags.Valid && r.Tags.String != "" {
		it.Tags = strings.Split(r.Tags.String, ",")
	}
	return it, nil
}

func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339Nano)
	return &v
}

// UpsertItems inserts or replaces items belonging to streamID, then evicts
// the oldest unsaved items beyond maxPerStream (0 disables eviction). Run as
// a single transaction under the writer lock so an overlapping sync cannot
// observe a partially-written batch.
//
// Per spec §4.B, existing is_read/is_saved/is_archived flags are never
// clobbered by a re-ingested record — the cache is the sole authority for
// them (spec §3 invariants) — so the flag columns are intentionally absent
// from the ON CONFLICT UPDATE SET clause below.
func (c *Cache) UpsertItems(streamID domain.StreamID, items []domain.Item, maxPerStream int) error {
	return c.writeLocked("upsert_items", func(tx *sqlx.Tx) error {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, it := range items {
			bodyJSON, err := json.Marshal(it)
			if err != nil {
				return fmt.Errorf("encode item %s: %w", it.ID, err)
			}
			var body struct {
				Content json.RawMessage `json:"content"`
			}
			if err := json.Unmarshal(bodyJSON, &body); err != nil {
				return err
			}
			var authorName *string
			if it.Author != nil {
				authorName = &it.Author.Name
			}
			var tags *string
			if len(it.Tags) > 0 {
				joined := strings.Join(it.Tags, ",")
				tags = &joined
			}
			bodyText := PlainTextProjection(it.Content)
			_, err = tx.Exec(`
				INSERT INTO items (id, stream_id, title, body, body_text, author_name, published, updated, url, thumbnail_url, is_read, is_saved, is_archived, tags, inserted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					title = excluded.title, body = excluded.body, body_text = excluded.body_text,
					author_name = excluded.author_name,
					published = excluded.published, updated = excluded.updated, url = excluded.url,
					thumbnail_url = excluded.thumbnail_url
			`, string(it.ID), string(streamID), it.Title, string(body.Content), bodyText, authorName,
				formatTimestamp(it.Published), formatTimestamp(it.Updated), it.URL, it.ThumbnailURL,
				it.IsRead, it.IsSaved, it.IsArchived, tags, now)
			if err != nil {
				return fmt.Errorf("upsert item %s: %w", it.ID, err)
			}
		}
		if maxPerStream <= 0 {
			return nil
		}
		_, err := tx.Exec(`
			DELETE FROM items WHERE rowid IN (
				SELECT rowid FROM (
					SELECT rowid, ROW_NUMBER() OVER (
						ORDER BY COALESCE(published, inserted_at) DESC, inserted_at DESC
					) AS rn
					FROM items WHERE stream_id = ? AND is_saved = 0
				) WHERE rn > ?
			)
		`, string(streamID), maxPerStream)
		return err
	})
}

// ItemQueryOptions controls cache.get_items per spec §4.B: whether read
// items are included, a page (limit/offset), and a lower bound on
// published/updated recency.
type ItemQueryOptions struct {
	IncludeRead bool
	Limit       int
	Offset      int
	Since       *time.Time
}

// GetItems returns a stream's cached items, most recently published first,
// ties broken by insertion order, newest first (the query's secondary ORDER
// BY keys: inserted_at, stamped at write time, then rowid for rows written
// in the same batch, which share one inserted_at).
func (c *Cache) GetItems(streamID domain.StreamID, opts ItemQueryOptions) ([]domain.Item, error) {
	var rows []itemRow
	err := c.instrument("get_items", func() error {
		q := `SELECT ` + itemColumns + ` FROM items WHERE stream_id = ?`
		args := []any{string(streamID)}
		if !opts.IncludeRead {
			q += ` AND is_read = 0`
		}
		if opts.Since != nil {
			q += ` AND COALESCE(published, updated, inserted_at) >= ?`
			args = append(args, opts.Since.UTC().Format(time.RFC3339Nano))
		}
		q += ` ORDER BY COALESCE(published, inserted_at) DESC, inserted_at DESC, rowid DESC`
		if opts.Limit > 0 {
			q += fmt.Sprintf(" LIMIT %d", opts.Limit)
			if opts.Offset > 0 {
				q += fmt.Sprintf(" OFFSET %d", opts.Offset)
			}
		} else if opts.Offset > 0 {
			q += fmt.Sprintf(" LIMIT -1 OFFSET %d", opts.Offset)
		}
		return c.db.Select(&rows, q, args...)
	})
	if err != nil {
		return nil, err
	}
	return itemsFromRows(rows)
}

// GetAllItems returns every cached item across every stream, used by the
// unified saved/search views.
func (c *Cache) GetAllItems() ([]domain.Item, error) {
	var rows []itemRow
	err := c.instrument("get_all_items", func() error {
		return c.db.Select(&rows, `SELECT `+itemColumns+` FROM items`)
	})
	if err != nil {
		return nil, err
	}
	return itemsFromRows(rows)
}

func itemsFromRows(rows []itemRow) ([]domain.Item, error) {
	items := make([]domain.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// SetItemFlag updates one of the is_read/is_saved/is_archived boolean
// columns for a single item. field must be one of those three — all fixed,
// package-internal call sites, never user input.
func (c *Cache) SetItemFlag(id domain.ItemID, field string, value bool) error {
	switch field {
	case "is_read", "is_saved", "is_archived":
	default:
		return fmt.Errorf("cache: invalid item flag %q", field)
	}
	return c.writeLocked("set_item_flag", func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`UPDATE items SET `+field+` = ? WHERE id = ?`, value, string(id))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.ItemNotFoundError{ItemID: id}
		}
		return nil
	})
}

// DeleteItem removes an item from the cache entirely. Used by the eviction
// path and by explicit provider-deletion events (spec §3 lifecycles) — not
// by the RPC items.archive method, which flips is_archived instead of
// deleting (mark_archived, spec §4.B).
func (c *Cache) DeleteItem(id domain.ItemID) error {
	return c.writeLocked("delete_item", func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM items WHERE id = ?`, string(id))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.ItemNotFoundError{ItemID: id}
		}
		return nil
	})
}

// SearchFilter narrows search.query per spec §4.B: filters are conjunctive.
// ContentType matches an item's content tag (domain.ItemContent.Kind())
// exactly, e.g. "email", "article", "text" — not the unified view's
// collapsed taxonomy (views.contentTypeOf), since full-text search operates
// directly on the cache's stored kind rather than the cross-provider
// aggregation's coarser grouping.
type SearchFilter struct {
	StreamID    *domain.StreamID
	ContentType *string
	IsRead      *bool
	IsSaved     *bool
}

// SearchItems runs a full-text query over the items_fts index and returns
// matching items, best match first, narrowed by filter. ContentType is
// applied after the SQL fetch since the content tag lives inside the JSON
// body column, not a dedicated indexed column.
func (c *Cache) SearchItems(query string, limit int, filter SearchFilter) ([]domain.Item, error) {
	if limit <= 0 {
		limit = 50
	}
	fetchLimit := limit
	if filter.ContentType != nil {
		// content_type is filtered client-side after the SQL fetch, so pull
		// extra candidates to avoid under-filling the page.
		fetchLimit = limit * 4
		if fetchLimit < 200 {
			fetchLimit = 200
		}
	}

	q := `
		SELECT i.id, i.stream_id, i.title, i.body, i.author_name, i.published, i.updated,
		       i.url, i.thumbnail_url, i.is_read, i.is_saved, i.is_archived, i.tags
		FROM items_fts f
		JOIN items i ON i.rowid = f.rowid
		WHERE items_fts MATCH ?`
	args := []any{query}
	if filter.StreamID != nil {
		q += ` AND i.stream_id = ?`
		args = append(args, string(*filter.StreamID))
	}
	if filter.IsRead != nil {
		q += ` AND i.is_read = ?`
		args = append(args, *filter.IsRead)
	}
	if filter.IsSaved != nil {
		q += ` AND i.is_saved = ?`
		args = append(args, *filter.IsSaved)
	}
	q += ` ORDER BY rank LIMIT ?`
	args = append(args, fetchLimit)

	var rows []itemRow
	err := c.instrument("search_items", func() error {
		return c.db.Select(&rows, q, args...)
	})
	if err != nil {
		return nil, err
	}
	items, err := itemsFromRows(rows)
	if err != nil {
		return nil, err
	}
	if filter.ContentType == nil {
		return items, nil
	}
	filtered := make([]domain.Item, 0, limit)
	for _, it := range items {
		if it.Content != nil && it.Content.Kind() == *filter.ContentType {
			filtered = append(filtered, it)
			if len(filtered) == limit {
				break
			}
		}
	}
	return filtered, nil
}
