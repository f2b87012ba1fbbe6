// Package prefs manages persisted user preferences and the manual-pause
// ledger. All reads and writes go through the Store interface so tests can
// substitute the in-memory implementation.
package prefs

// Naming pattern values for the destination path layout.
const (
	NamingFlat         = "flat"          // Title.m4b directly under the root
	NamingAuthor       = "author"        // Author/Title/Title.m4b
	NamingAuthorSeries = "author_series" // Author/Series - Title/Title.m4b
)

// Store persists user preferences and the manual-pause ledger.
type Store interface {
	// RestrictedOnly reports whether downloading is limited to a
	// qualifying network type.
	RestrictedOnly() (bool, error)
	SetRestrictedOnly(enabled bool) error

	// NamingPattern returns the destination path layout preference.
	NamingPattern() (string, error)
	SetNamingPattern(pattern string) error

	// CompanionCoverArt reports whether a sibling cover image is written
	// next to the finished audiobook.
	CompanionCoverArt() (bool, error)
	SetCompanionCoverArt(enabled bool) error

	Ledger
}

// Ledger is the manual-pause ledger: the set of item ids the user
// explicitly paused. An id is present if and only if the user paused the
// item and it has not since been resumed, completed, or cancelled. The
// network policy arbiter may read and clear entries but never set them.
type Ledger interface {
	// MarkPaused records a user-initiated pause. Set-if-absent: returns
	// true when the entry was created, false when it already existed.
	MarkPaused(itemID string) (bool, error)

	// ClearPaused removes a ledger entry. Returns true when an entry
	// was removed, false when none existed.
	ClearPaused(itemID string) (bool, error)

	// IsPaused reports whether the item is in the ledger.
	IsPaused(itemID string) (bool, error)

	// PausedIDs returns all ledger entries.
	PausedIDs() ([]string, error)
}
