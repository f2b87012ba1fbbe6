package destination

import (
	"fmt"
	"path"

	"github.com/talefetch/talefetch/internal/item"
	"github.com/talefetch/talefetch/internal/metadata"
	"github.com/talefetch/talefetch/internal/prefs"
	"github.com/talefetch/talefetch/pkg/titles"
)

const audioExt = ".m4b"

// ResolvePath builds the destination-relative path for a finished
// audiobook from the naming-pattern preference. Callers fall back to the
// bare external id when this fails; a naming problem never blocks a write.
func ResolvePath(pattern string, it *item.WorkItem, book *metadata.Book) (string, error) {
	title := ""
	if book != nil {
		title = book.Title
	}
	if title == "" {
		title = it.Title
	}
	title = titles.SanitizeFilename(title)
	if title == "" {
		return "", fmt.Errorf("no usable title for %s", it.ID)
	}

	filename := title + audioExt

	switch pattern {
	case prefs.NamingFlat:
		return filename, nil

	case prefs.NamingAuthor:
		return path.Join(authorSegment(book), title, filename), nil

	case prefs.NamingAuthorSeries:
		folder := title
		if book != nil && book.SeriesName != "" {
			series := titles.SanitizeFilename(book.SeriesName)
			if series != "" {
				folder = series + " - " + title
			}
		}
		return path.Join(authorSegment(book), folder, filename), nil

	default:
		return "", fmt.Errorf("unknown naming pattern %q", pattern)
	}
}

// FallbackPath is the flat filename used when path resolution fails.
func FallbackPath(it *item.WorkItem) string {
	return titles.SanitizeFilename(it.ID) + audioExt
}

func authorSegment(book *metadata.Book) string {
	if book != nil && len(book.Authors) > 0 {
		if author := titles.SanitizeFilename(book.Authors[0]); author != "" {
			return author
		}
	}
	return "Unknown Author"
}
