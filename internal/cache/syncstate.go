package cache

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// SyncState is a provider's last known sync outcome, the source views.View
// and the RPC service's sync.status method read from.
type SyncState struct {
	ProviderID string
	LastSync   *time.Time
	LastError  *string
	InProgress bool
	ErrorCount int
}

type syncStateRow struct {
	ProviderID string         `db:"provider_id"`
	LastSync   sql.NullString `db:"last_sync"`
	LastError  sql.NullString `db:"last_error"`
	InProgress bool           `db:"in_progress"`
	ErrorCount int            `db:"error_count"`
}

func (r syncStateRow) toDomain() (SyncState, error) {
	s := SyncState{ProviderID: r.ProviderID, InProgress: r.InProgress, ErrorCount: r.ErrorCount}
	t, err := parseTimestamp(r.LastSync)
	if err != nil {
		return SyncState{}, err
	}
	s.LastSync = t
	if r.LastError.Valid {
		s.LastError = &r.LastError.String
	}
	return s, nil
}

// SetSyncInProgress flips a provider's in_progress flag, creating its row if
// absent.
func (c *Cache) SetSyncInProgress(providerID string, inProgress bool) error {
	return c.writeLocked("set_sync_in_progress", func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sync_state (provider_id, in_progress) VALUES (?, ?)
			ON CONFLICT (provider_id) DO UPDATE SET in_progress = excluded.in_progress
		`, providerID, inProgress)
		return err
	})
}

// RecordSyncResult records the outcome of a completed sync: clears
// in_progress and sets (or clears) last_error. Only a successful sync stamps
// last_sync to now; after a failure last_sync keeps its previous value. A
// non-nil syncErr increments the provider's consecutive error_count; a nil
// syncErr (success) resets it to 0 — the scheduler's backoff counter is
// derived from this column, not tracked separately in memory, so it
// survives a daemon restart mid-backoff.
func (c *Cache) RecordSyncResult(providerID string, syncErr error) error {
	return c.writeLocked("record_sync_result", func(tx *sqlx.Tx) error {
		var errMsg *string
		if syncErr != nil {
			msg := syncErr.Error()
			errMsg = &msg
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if syncErr == nil {
			_, err := tx.Exec(`
				INSERT INTO sync_state (provider_id, last_sync, last_error, in_progress, error_count)
				VALUES (?, ?, NULL, 0, 0)
				ON CONFLICT (provider_id) DO UPDATE SET
					last_sync = excluded.last_sync, last_error = NULL, in_progress = 0, error_count = 0
			`, providerID, now)
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO sync_state (provider_id, last_error, in_progress, error_count)
			VALUES (?, ?, 0, 1)
			ON CONFLICT (provider_id) DO UPDATE SET
				last_error = excluded.last_error, in_progress = 0, error_count = sync_state.error_count + 1
		`, providerID, errMsg)
		return err
	})
}

// GetSyncState returns a single provider's sync state, or the zero value
// with InProgress=false if it has never synced.
func (c *Cache) GetSyncState(providerID string) (SyncState, error) {
	var row syncStateRow
	err := c.instrument("get_sync_state", func() error {
		return c.db.Get(&row, `SELECT provider_id, last_sync, last_error, in_progress, error_count FROM sync_state WHERE provider_id = ?`, providerID)
	})
	if err == sql.ErrNoRows {
		return SyncState{ProviderID: providerID}, nil
	}
	if err != nil {
		return SyncState{}, err
	}
	return row.toDomain()
}

// GetAllSyncStates returns every provider's recorded sync state.
func (c *Cache) GetAllSyncStates() ([]SyncState, error) {
	var rows []syncStateRow
	err := c.instrument("get_all_sync_states", func() error {
		return c.db.Select(&rows, `SELECT provider_id, last_sync, last_error, in_progress, error_count FROM sync_state ORDER BY provider_id`)
	})
	if err != nil {
		return nil, err
	}
	states := make([]SyncState, 0, len(rows))
	for _, r := range rows {
		s, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, nil
}
