package index

import (
	"database/sql"
	"fmt"
	"time"
)

// Watermark returns the last successful sync time for a group, or the
// zero time when the group has never been synced.
func (db *DB) Watermark(group string) (time.Time, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT last_sync FROM sync_state WHERE group_id = ?`, group).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("index: watermark of %s: %w", group, err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("index: parse watermark of %s: %w", group, err)
	}
	return t, nil
}

// SetWatermark records the last successful sync time for a group.
// Callers advance it only after a fully ingested batch.
func (db *DB) SetWatermark(group string, t time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO sync_state (group_id, last_sync) VALUES (?, ?)
		ON CONFLICT(group_id) DO UPDATE SET last_sync = excluded.last_sync
	`, group, t.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("index: set watermark of %s: %w", group, err)
	}
	return nil
}

// ResetWatermark forgets the sync time of a group so the next sync
// pulls everything from the beginning.
func (db *DB) ResetWatermark(group string) error {
	if _, err := db.conn.Exec(`DELETE FROM sync_state WHERE group_id = ?`, group); err != nil {
		return fmt.Errorf("index: reset watermark of %s: %w", group, err)
	}
	return nil
}
