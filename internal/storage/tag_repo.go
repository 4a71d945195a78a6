package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// TagRepo provides methods for tag operations.
type TagRepo struct {
	db *sql.DB
}

// NewTagRepo creates a new TagRepo bound to the shared connection.
func NewTagRepo(db *sql.DB) *TagRepo {
	return &TagRepo{db: db}
}

// EnsureTable idempotently creates the Tag table.
// Tag ids are opaque strings chosen by the caller, not generated.
func (r *TagRepo) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS "Tag" (
		id TEXT PRIMARY KEY NOT NULL,
		name TEXT NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("failed to create Tag table: %w", err)
	}
	return nil
}

// GetOrCreate returns the tag with the given id, creating it with name == id
// if absent. Absence is the create trigger, never an error. The insert uses
// ON CONFLICT DO NOTHING so concurrent callers cannot double-create.
func (r *TagRepo) GetOrCreate(ctx context.Context, tagID string) (TagRecord, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO Tag (id, name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`,
		tagID, tagID,
	)
	if err != nil {
		return TagRecord{}, fmt.Errorf("failed to create tag: %w", err)
	}

	var tag TagRecord
	err = r.db.QueryRowContext(ctx,
		"SELECT id, name FROM Tag WHERE id = ?", tagID,
	).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return TagRecord{}, fmt.Errorf("failed to query tag: %w", err)
	}

	return tag, nil
}

// Get returns a tag by id. Returns ErrNotFound if absent.
func (r *TagRepo) Get(ctx context.Context, tagID string) (TagRecord, error) {
	var tag TagRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name FROM Tag WHERE id = ?", tagID,
	).Scan(&tag.ID, &tag.Name)
	if err == sql.ErrNoRows {
		return TagRecord{}, ErrNotFound
	}
	if err != nil {
		return TagRecord{}, fmt.Errorf("failed to query tag: %w", err)
	}
	return tag, nil
}

// FindByIDs returns the tags whose id is in the given set, used to resolve a
// document's tag membership. Unknown ids are simply missing from the result.
func (r *TagRepo) FindByIDs(ctx context.Context, ids []string) ([]TagRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name FROM Tag WHERE id IN ("+placeholders+") ORDER BY name",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tags []TagRecord
	for rows.Next() {
		var tag TagRecord
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tags, nil
}
