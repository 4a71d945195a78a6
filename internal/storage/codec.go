package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrCorruptRecord is returned when a JSON-encoded structured field fails to
// parse. This indicates on-disk data corruption and must never be silently
// defaulted.
var ErrCorruptRecord = errors.New("corrupt record")

// encodeJSON serializes a structured field value for storage. Callers pass
// only non-nil values; absent fields are omitted from the statement entirely,
// never written as NULL over an existing value.
func encodeJSON(table, column string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s.%s: %w", table, column, err)
	}
	return string(data), nil
}

// decodeJSON parses a stored structured field back into dst. A parse failure
// is reported as ErrCorruptRecord with enough context to locate the row.
func decodeJSON(table, column, id, raw string, dst any) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%w: %s.%s for id %s: %v", ErrCorruptRecord, table, column, id, err)
	}
	return nil
}

// PathCodec converts page image paths between the absolute form used in
// memory and the relative form persisted in the database. Paths are stored
// relative so the root data folder can move between app versions without
// rewriting every row.
type PathCodec struct {
	DataRoot string
}

// Strip removes the data root prefix, leaving the stored relative form.
// Paths outside the data root are stored as-is.
func (c PathCodec) Strip(absolute string) string {
	return strings.TrimPrefix(absolute, c.DataRoot)
}

// Rehydrate restores the absolute path from the stored relative form.
// It is the exact inverse of Strip for any path under the data root.
func (c PathCodec) Rehydrate(relative string) string {
	if relative == "" {
		return ""
	}
	if strings.HasPrefix(relative, c.DataRoot) {
		// Row predates the relative-path migration.
		return relative
	}
	return c.DataRoot + relative
}
