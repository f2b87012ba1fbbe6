package prefs

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Preference keys.
const (
	keyRestrictedOnly    = "restricted_only"
	keyNamingPattern     = "naming_pattern"
	keyCompanionCoverArt = "companion_cover_art"
)

// SQLiteStore is the sqlite-backed preference store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a preference store over an open database.
// The schema must already be migrated.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) getString(key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) setString(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) getBool(key string, fallback bool) (bool, error) {
	raw, err := s.getString(key, strconv.FormatBool(fallback))
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(raw)
}

// RestrictedOnly reports the restricted-network-only preference.
func (s *SQLiteStore) RestrictedOnly() (bool, error) {
	return s.getBool(keyRestrictedOnly, false)
}

// SetRestrictedOnly persists the restricted-network-only preference.
func (s *SQLiteStore) SetRestrictedOnly(enabled bool) error {
	return s.setString(keyRestrictedOnly, strconv.FormatBool(enabled))
}

// NamingPattern returns the destination path layout preference.
func (s *SQLiteStore) NamingPattern() (string, error) {
	return s.getString(keyNamingPattern, NamingAuthor)
}

// SetNamingPattern persists the destination path layout preference.
func (s *SQLiteStore) SetNamingPattern(pattern string) error {
	return s.setString(keyNamingPattern, pattern)
}

// CompanionCoverArt reports the companion cover art preference.
func (s *SQLiteStore) CompanionCoverArt() (bool, error) {
	return s.getBool(keyCompanionCoverArt, false)
}

// SetCompanionCoverArt persists the companion cover art preference.
func (s *SQLiteStore) SetCompanionCoverArt(enabled bool) error {
	return s.setString(keyCompanionCoverArt, strconv.FormatBool(enabled))
}

// MarkPaused records a user-initiated pause. The insert is a compare-and-swap:
// a concurrent resume sweep racing with this call sees either no entry or a
// committed one, never a partial state.
func (s *SQLiteStore) MarkPaused(itemID string) (bool, error) {
	result, err := s.db.Exec(
		"INSERT INTO manual_pauses (item_id) VALUES (?) ON CONFLICT(item_id) DO NOTHING",
		itemID,
	)
	if err != nil {
		return false, fmt.Errorf("mark paused %s: %w", itemID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// ClearPaused removes a ledger entry.
func (s *SQLiteStore) ClearPaused(itemID string) (bool, error) {
	result, err := s.db.Exec("DELETE FROM manual_pauses WHERE item_id = ?", itemID)
	if err != nil {
		return false, fmt.Errorf("clear paused %s: %w", itemID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// IsPaused reports whether the item is in the ledger.
func (s *SQLiteStore) IsPaused(itemID string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM manual_pauses WHERE item_id = ?", itemID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is paused %s: %w", itemID, err)
	}
	return true, nil
}

// PausedIDs returns all ledger entries.
func (s *SQLiteStore) PausedIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT item_id FROM manual_pauses ORDER BY item_id")
	if err != nil {
		return nil, fmt.Errorf("list paused: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan paused id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paused ids: %w", err)
	}
	return ids, nil
}
