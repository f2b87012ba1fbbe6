// Package destination places validated audiobooks into the user's library
// root, resolving the naming-pattern path, creating missing directories,
// and optionally emitting a companion cover-art file.
package destination

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/talefetch/talefetch/internal/events"
	"github.com/talefetch/talefetch/internal/item"
	"github.com/talefetch/talefetch/internal/metadata"
	"github.com/talefetch/talefetch/internal/prefs"
)

// Writer copies validated artifacts to their final location.
type Writer struct {
	storage Storage
	prefs   prefs.Store
	bus     *events.Bus
	log     *slog.Logger
}

// NewWriter creates a destination writer.
func NewWriter(storage Storage, store prefs.Store, bus *events.Bus, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		storage: storage,
		prefs:   store,
		bus:     bus,
		log:     log.With("component", "destination"),
	}
}

// Write places the validated artifact under the item's destination root
// and returns the final path. On success the staging copy is deleted, the
// item's manual-pause ledger entry (if any) is cleared, and the completion
// event is published.
func (w *Writer) Write(ctx context.Context, it *item.WorkItem, book *metadata.Book, validatedPath, coverArtPath string) (string, error) {
	relPath := w.resolve(it, book)

	// Fail fast on permissions before touching anything.
	if err := w.storage.CheckWritable(it.DestinationDir); err != nil {
		return "", err
	}

	segments := strings.Split(relPath, "/")
	filename := segments[len(segments)-1]
	dir := it.DestinationDir
	for _, segment := range segments[:len(segments)-1] {
		next, err := w.storage.EnsureDir(dir, segment)
		if err != nil {
			return "", err
		}
		dir = next
	}

	finalPath, err := w.copyInto(dir, filename, validatedPath)
	if err != nil {
		return "", err
	}

	// Staging copy goes away only after the copy fully succeeded.
	if err := os.Remove(validatedPath); err != nil && !os.IsNotExist(err) {
		w.log.Warn("failed to remove staging copy", "path", validatedPath, "error", err)
	}

	w.maybeWriteCover(dir, coverArtPath)

	if _, err := w.prefs.ClearPaused(it.ID); err != nil {
		w.log.Warn("failed to clear ledger entry", "id", it.ID, "error", err)
	}

	w.log.Info("item placed", "id", it.ID, "path", finalPath)
	w.bus.Publish(events.NewCompleted(it.ID, it.Title, finalPath))
	return finalPath, nil
}

// resolve applies the naming-pattern preference, falling back to the bare
// external id as filename if resolution fails for any reason.
func (w *Writer) resolve(it *item.WorkItem, book *metadata.Book) string {
	pattern, err := w.prefs.NamingPattern()
	if err != nil {
		w.log.Warn("failed to read naming pattern", "error", err)
		return FallbackPath(it)
	}
	relPath, err := ResolvePath(pattern, it, book)
	if err != nil {
		w.log.Warn("path resolution failed, using fallback", "id", it.ID, "error", err)
		return FallbackPath(it)
	}
	return relPath
}

// copyInto streams the validated artifact into a newly created
// destination file.
func (w *Writer) copyInto(dir, filename, srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("%w: open source: %v", ErrCopyFailed, err)
	}
	defer func() { _ = src.Close() }()

	dst, finalPath, err := w.storage.CreateFile(dir, filename, audioContentTypes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = w.storage.Delete(finalPath)
		return "", fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	if err := dst.Close(); err != nil {
		_ = w.storage.Delete(finalPath)
		return "", fmt.Errorf("%w: close: %v", ErrCopyFailed, err)
	}
	return finalPath, nil
}

// maybeWriteCover writes the companion cover file when the preference is
// enabled and art is available. Failure here never fails the write.
func (w *Writer) maybeWriteCover(dir, coverArtPath string) {
	if coverArtPath == "" {
		return
	}
	enabled, err := w.prefs.CompanionCoverArt()
	if err != nil {
		w.log.Warn("failed to read cover art preference", "error", err)
		return
	}
	if !enabled {
		return
	}
	if err := writeCompanionCover(w.storage, dir, coverArtPath); err != nil {
		w.log.Warn("companion cover art failed", "error", err)
	}
}
