package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/out-of-cheese-error/gooseberry/internal/apperr"
	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

// Put inserts or replaces an annotation and reconciles its tag
// memberships. The symmetric difference against the previously stored
// tag set is computed and only that delta is applied, all within one
// transaction, so readers observe either the pre- or post-state.
// Annotations with no tags are filed under EmptyTag.
func (db *DB) Put(a models.Annotation) error {
	a.Tags = models.DedupeTags(a.Tags)

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("index: marshal annotation %s: %w", a.ID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO annotations (id, payload, group_id, created, updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload  = excluded.payload,
			group_id = excluded.group_id,
			created  = excluded.created,
			updated  = excluded.updated
	`, a.ID, string(payload), a.Group,
		a.Created.UTC().Format(time.RFC3339Nano),
		a.Updated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("index: upsert annotation %s: %w", a.ID, err)
	}

	current, err := tagsOf(tx, a.ID)
	if err != nil {
		return err
	}

	desired := make(map[string]struct{}, len(a.Tags))
	for _, t := range a.Tags {
		desired[t] = struct{}{}
	}
	if len(desired) == 0 {
		desired[EmptyTag] = struct{}{}
	}

	for t := range current {
		if _, keep := desired[t]; !keep {
			if _, err := tx.Exec(`DELETE FROM annotation_tags WHERE annotation_id = ? AND tag = ?`, a.ID, t); err != nil {
				return fmt.Errorf("index: remove tag %q from %s: %w", t, a.ID, err)
			}
		}
	}
	for t := range desired {
		if _, present := current[t]; !present {
			if _, err := tx.Exec(`INSERT INTO annotation_tags (annotation_id, tag) VALUES (?, ?)`, a.ID, t); err != nil {
				return fmt.Errorf("index: add tag %q to %s: %w", t, a.ID, err)
			}
		}
	}

	return tx.Commit()
}

// Remove deletes an annotation and all of its tag memberships. Buckets
// that become empty vanish with their last row. Removing an unknown id
// returns apperr.ErrNotFound.
func (db *DB) Remove(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete annotation %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: remove %s: %w", id, apperr.ErrNotFound)
	}
	if _, err := tx.Exec(`DELETE FROM annotation_tags WHERE annotation_id = ?`, id); err != nil {
		return fmt.Errorf("index: delete tags of %s: %w", id, err)
	}

	return tx.Commit()
}

// Get returns the annotation stored under id.
func (db *DB) Get(id string) (*models.Annotation, error) {
	var payload string
	err := db.conn.QueryRow(`SELECT payload FROM annotations WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("index: annotation %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get %s: %w", id, err)
	}
	var a models.Annotation
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, &apperr.InconsistentIndexError{Detail: fmt.Sprintf("annotation %s has unreadable payload", id)}
	}
	return &a, nil
}

// GetMany returns the annotations stored under ids, in the given order.
func (db *DB) GetMany(ids []string) ([]models.Annotation, error) {
	out := make([]models.Annotation, 0, len(ids))
	for _, id := range ids {
		a, err := db.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// GetTags returns the tag set of an annotation. The reserved EmptyTag
// bucket is an index detail and is not reported. Unknown ids return
// apperr.ErrNotFound.
func (db *DB) GetTags(id string) ([]string, error) {
	var exists int
	if err := db.conn.QueryRow(`SELECT count(*) FROM annotations WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("index: get tags of %s: %w", id, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("index: annotation %s: %w", id, apperr.ErrNotFound)
	}

	rows, err := db.conn.Query(`SELECT tag FROM annotation_tags WHERE annotation_id = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("index: get tags of %s: %w", id, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		if t != EmptyTag {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// GetIDs returns every annotation id filed under tag. An unseen tag
// yields an empty slice, not an error.
func (db *DB) GetIDs(tag string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT annotation_id FROM annotation_tags WHERE tag = ? ORDER BY annotation_id`, tag)
	if err != nil {
		return nil, fmt.Errorf("index: get ids of %q: %w", tag, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// All returns every stored annotation, oldest first. A non-empty group
// restricts the result to that group.
func (db *DB) All(group string) ([]models.Annotation, error) {
	query := `SELECT payload FROM annotations ORDER BY created, id`
	args := []any{}
	if group != "" {
		query = `SELECT payload FROM annotations WHERE group_id = ? ORDER BY created, id`
		args = append(args, group)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list annotations: %w", err)
	}
	defer rows.Close()

	var out []models.Annotation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a models.Annotation
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, &apperr.InconsistentIndexError{Detail: "annotation with unreadable payload"}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AllIDs returns the set of every indexed annotation id.
func (db *DB) AllIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM annotations`)
	if err != nil {
		return nil, fmt.Errorf("index: all ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// AllTags returns every known tag, sorted, including the reserved
// EmptyTag bucket when tagless annotations exist.
func (db *DB) AllTags() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT tag FROM annotation_tags`)
	if err != nil {
		return nil, fmt.Errorf("index: all tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Verify scans for invariant violations between the annotation and tag
// relations: tag rows pointing at unknown annotations, and annotations
// with no tag bucket at all. Violations are fatal for the index.
func (db *DB) Verify() error {
	var orphans int
	err := db.conn.QueryRow(`
		SELECT count(*) FROM annotation_tags t
		WHERE NOT EXISTS (SELECT 1 FROM annotations a WHERE a.id = t.annotation_id)
	`).Scan(&orphans)
	if err != nil {
		return fmt.Errorf("index: verify: %w", err)
	}
	if orphans > 0 {
		return &apperr.InconsistentIndexError{Detail: fmt.Sprintf("%d tag entries reference missing annotations", orphans)}
	}

	var unbucketed int
	err = db.conn.QueryRow(`
		SELECT count(*) FROM annotations a
		WHERE NOT EXISTS (SELECT 1 FROM annotation_tags t WHERE t.annotation_id = a.id)
	`).Scan(&unbucketed)
	if err != nil {
		return fmt.Errorf("index: verify: %w", err)
	}
	if unbucketed > 0 {
		return &apperr.InconsistentIndexError{Detail: fmt.Sprintf("%d annotations missing from every tag bucket", unbucketed)}
	}
	return nil
}

func tagsOf(tx *sql.Tx, id string) (map[string]struct{}, error) {
	rows, err := tx.Query(`SELECT tag FROM annotation_tags WHERE annotation_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("index: current tags of %s: %w", id, err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out[t] = struct{}{}
	}
	return out, rows.Err()
}
