package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/raibid-labs/scryhub/internal/domain"
)

type streamRow struct {
	ID          string         `db:"id"`
	ProviderID  string         `db:"provider_id"`
	Name        string         `db:"name"`
	StreamType  string         `db:"stream_type"`
	Icon        sql.NullString `db:"icon"`
	LastUpdated sql.NullString `db:"last_updated"`
}

func (r streamRow) toDomain() (domain.Stream, error) {
	s := domain.Stream{
		ID:         domain.StreamID(r.ID),
		ProviderID: r.ProviderID,
		Name:       r.Name,
		Type:       domain.StreamType(r.StreamType),
	}
	if r.Icon.Valid {
		icon := r.Icon.String
		s.Icon = &icon
	}
	if r.LastUpdated.Valid {
		t, err := time.Parse(time.RFC3339Nano, r.LastUpdated.String)
		if err != nil {
			return domain.Stream{}, fmt.Errorf("parse last_updated: %w", err)
		}
		s.LastUpdated = &t
	}
	return s, nil
}

// UpsertStream inserts or replaces a stream's cached metadata.
func (c *Cache) UpsertStream(s domain.Stream) error {
	return c.writeLocked("upsert_stream", func(tx *sqlx.Tx) error {
		var lastUpdated *string
		if s.LastUpdated != nil {
			v := s.LastUpdated.Format(time.RFC3339Nano)
			lastUpdated = &v
		}
		var icon *string
		if s.Icon != nil {
			icon = s.Icon
		}
		_, err := tx.Exec(`
			INSERT INTO streams (id, provider_id, name, stream_type, icon, last_updated)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, stream_type = excluded.stream_type,
				icon = excluded.icon, last_updated = excluded.last_updated
		`, string(s.ID), s.ProviderID, s.Name, string(s.Type), icon, lastUpdated)
		return err
	})
}

// GetStreams returns every cached stream, optionally filtered to a single
// provider when providerID is non-empty.
func (c *Cache) GetStreams(providerID string) ([]domain.Stream, error) {
	var rows []streamRow
	err := c.instrument("get_streams", func() error {
		if providerID == "" {
			return c.db.Select(&rows, `SELECT id, provider_id, name, stream_type, icon, last_updated FROM streams ORDER BY id`)
		}
		return c.db.Select(&rows, `SELECT id, provider_id, name, stream_type, icon, last_updated FROM streams WHERE provider_id = ? ORDER BY id`, providerID)
	})
	if err != nil {
		return nil, err
	}
	streams := make([]domain.Stream, 0, len(rows))
	for _, r := range rows {
		s, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// GetStream returns a single cached stream by ID.
func (c *Cache) GetStream(id domain.StreamID) (domain.Stream, error) {
	var row streamRow
	err := c.instrument("get_stream", func() error {
		return c.db.Get(&row, `SELECT id, provider_id, name, stream_type, icon, last_updated FROM streams WHERE id = ?`, string(id))
	})
	if err == sql.ErrNoRows {
		return domain.Stream{}, fmt.Errorf("stream %q not cached", id)
	}
	if err != nil {
		return domain.Stream{}, err
	}
	return row.toDomain()
}
