// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// sqlTimeLayout matches sqlite's CURRENT_TIMESTAMP output so stored values
// and bound parameters compare lexically. All times are stored in UTC.
const sqlTimeLayout = "2006-01-02 15:04:05.999999999"

// sqlTime formats a time for storage or comparison.
func sqlTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

// marshalJSON encodes a document column, defaulting to an empty object.
func marshalJSON(doc map[string]any) (string, error) {
	if doc == nil {
		return "{}", nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(data), nil
}

// unmarshalJSON decodes a document column; empty means empty document.
func unmarshalJSON(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode json column: %w", err)
	}
	return doc, nil
}

// nullString converts an optional value for binding.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt converts an optional count for binding. Zero means unset.
func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

// timePtr converts a scanned nullable timestamp.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
