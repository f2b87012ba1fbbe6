package convert

import (
	"fmt"
	"strings"

	"github.com/talefetch/talefetch/internal/metadata"
)

// genreAudiobook is the fixed genre written to every converted file.
const genreAudiobook = "Audiobook"

// Tag is one container-level metadata entry. Tags are emitted in a fixed
// order so the transcode request is deterministic.
type Tag struct {
	Key   string
	Value string
}

// BuildTags derives the tag set for a transcode from book metadata using
// the fixed mapping rules. A nil book yields an empty tag set.
func BuildTags(book *metadata.Book) []Tag {
	if book == nil {
		return nil
	}

	var tags []Tag
	add := func(key, value string) {
		if value != "" {
			tags = append(tags, Tag{Key: key, Value: value})
		}
	}

	add("title", book.Title)
	add("comment", buildComment(book))

	authors := strings.Join(book.Authors, ", ")
	add("artist", authors)
	add("album_artist", authors)
	add("composer", strings.Join(book.Narrators, ", "))
	add("publisher", book.Publisher)

	year := book.ReleaseYear()
	if book.Publisher != "" && year != "" {
		add("copyright", fmt.Sprintf("©%s %s;(P)%s %s", year, book.Publisher, year, book.Publisher))
	}

	add("album", buildAlbum(book))
	add("date", year)
	add("language", book.Language)
	add("grouping", book.ExternalID)
	add("genre", genreAudiobook)

	return tags
}

// buildComment appends the subtitle to the description.
func buildComment(book *metadata.Book) string {
	comment := book.Description
	if book.Subtitle != "" {
		if comment != "" {
			comment += "\n\n"
		}
		comment += book.Subtitle
	}
	return comment
}

// buildAlbum formats the series name with its sequence, e.g.
// "The Expanse, Book 3", or the bare series name without one.
func buildAlbum(book *metadata.Book) string {
	if book.SeriesName == "" {
		return ""
	}
	if book.SeriesSequence == "" {
		return book.SeriesName
	}
	return fmt.Sprintf("%s, Book %s", book.SeriesName, book.SeriesSequence)
}
