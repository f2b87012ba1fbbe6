// Package metadata provides cached access to the external audiobook
// metadata store.
package metadata

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the store has no record for the id.
var ErrNotFound = errors.New("metadata not found")

// Book is the metadata record for one audiobook.
type Book struct {
	ExternalID     string   `json:"external_id"`
	Title          string   `json:"title"`
	Subtitle       string   `json:"subtitle"`
	Description    string   `json:"description"`
	Authors        []string `json:"authors"`
	Narrators      []string `json:"narrators"`
	Publisher      string   `json:"publisher"`
	SeriesName     string   `json:"series_name"`
	SeriesSequence string   `json:"series_sequence"`
	ReleaseDate    string   `json:"release_date"` // ISO date string, year in first four characters
	Language       string   `json:"language"`
	CoverURL       string   `json:"cover_url"`
}

// ReleaseYear extracts the four-digit year from the release date, or ""
// when the date is absent or malformed.
func (b *Book) ReleaseYear() string {
	if len(b.ReleaseDate) < 4 {
		return ""
	}
	year := b.ReleaseDate[:4]
	for _, r := range year {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return year
}

// Source looks up book metadata. Absence of metadata is reported with
// ErrNotFound and is not fatal to conversion.
type Source interface {
	// ByExternalID returns the metadata record for the item id.
	ByExternalID(ctx context.Context, externalID string) (*Book, error)

	// ByTitle resolves a record by fuzzy title match when no id lookup
	// succeeds. ErrNotFound means no confident match.
	ByTitle(ctx context.Context, title string) (*Book, error)
}
