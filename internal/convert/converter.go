// Package convert turns a completed encrypted download into a tagged,
// validated audiobook and hands it to the destination writer.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/talefetch/talefetch/internal/destination"
	"github.com/talefetch/talefetch/internal/events"
	"github.com/talefetch/talefetch/internal/item"
	"github.com/talefetch/talefetch/internal/metadata"
	"github.com/talefetch/talefetch/internal/probe"
)

// Converter drives the decrypt-tag-validate-place sequence for one item.
// A size-1 semaphore keeps one conversion active at a time across items.
type Converter struct {
	meta       metadata.Source
	transcoder Transcoder
	prober     probe.Prober
	writer     *destination.Writer
	bus        *events.Bus
	gate       *semaphore.Weighted
	httpClient *http.Client
	stagingDir string
	log        *slog.Logger
}

// NewConverter creates a converter.
func NewConverter(meta metadata.Source, transcoder Transcoder, prober probe.Prober, writer *destination.Writer, bus *events.Bus, stagingDir string, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{
		meta:       meta,
		transcoder: transcoder,
		prober:     prober,
		writer:     writer,
		bus:        bus,
		gate:       semaphore.NewWeighted(1),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		stagingDir: stagingDir,
		log:        log.With("component", "convert"),
	}
}

// Convert runs the full conversion for a completed download and returns
// the final destination path. Cancellation of ctx interrupts an in-flight
// transcode or validation rather than letting it finish in the background.
func (c *Converter) Convert(ctx context.Context, it *item.WorkItem) (string, error) {
	c.bus.Publish(events.NewProgress(it.ID, events.StageDecrypting, 0, 0, it.TotalBytes))

	book := c.fetchMetadata(ctx, it)
	coverPath := c.fetchCoverArt(ctx, it, book)
	defer c.removeStaging(coverPath)

	req := &TranscodeRequest{
		InputPath:    it.EncryptedPath,
		OutputPath:   it.DecryptedPath,
		Key:          it.Key,
		IV:           it.IV,
		CoverArtPath: coverPath,
		Tags:         BuildTags(book),
	}

	if err := c.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	finalErr := func() error {
		defer c.gate.Release(1)

		if err := c.transcoder.Transcode(ctx, req); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Partial output is worthless; the encrypted input stays
			// for manual retry.
			c.removeStaging(it.DecryptedPath)
			return &TranscodeError{ItemID: it.ID, Log: err.Error(), Err: err}
		}

		result, err := Validate(ctx, c.prober, it.DecryptedPath)
		if err != nil {
			return err
		}
		if !result.Valid {
			c.log.Warn("integrity validation failed",
				"id", it.ID,
				"error_count", result.ErrorCount,
				"report", result.Report())
			c.removeStaging(it.DecryptedPath)
			c.removeStaging(it.EncryptedPath)
			return &ValidationError{ItemID: it.ID, Result: result}
		}
		c.log.Info("integrity validation passed", "id", it.ID, "samples", len(result.Samples), "took", result.Duration)
		return nil
	}()
	if finalErr != nil {
		return "", finalErr
	}

	c.bus.Publish(events.NewProgress(it.ID, events.StageCopying, 100, it.TotalBytes, it.TotalBytes))

	finalPath, err := c.writer.Write(ctx, it, book, it.DecryptedPath, coverPath)
	if err != nil {
		return "", err
	}

	c.removeStaging(it.EncryptedPath)
	return finalPath, nil
}

// fetchMetadata looks up book metadata; absence is not fatal and yields a
// nil book (empty tag set). When the id lookup misses and the queue gave
// us a title, fall back to a fuzzy title search before giving up.
func (c *Converter) fetchMetadata(ctx context.Context, it *item.WorkItem) *metadata.Book {
	book, err := c.meta.ByExternalID(ctx, it.ID)
	if err == nil {
		return book
	}
	if !errors.Is(err, metadata.ErrNotFound) {
		c.log.Warn("metadata lookup failed, converting untagged", "id", it.ID, "error", err)
		return nil
	}

	if it.Title != "" {
		book, err = c.meta.ByTitle(ctx, it.Title)
		if err == nil {
			c.log.Info("metadata resolved by title match", "id", it.ID, "title", it.Title, "matched", book.Title)
			return book
		}
		if !errors.Is(err, metadata.ErrNotFound) {
			c.log.Warn("metadata title search failed, converting untagged", "id", it.ID, "title", it.Title, "error", err)
			return nil
		}
	}

	c.log.Info("no metadata for item, converting untagged", "id", it.ID)
	return nil
}

// fetchCoverArt downloads the cover image to a transient staging file.
// Failure is non-fatal; conversion proceeds without embedded art.
func (c *Converter) fetchCoverArt(ctx context.Context, it *item.WorkItem, book *metadata.Book) string {
	if book == nil || book.CoverURL == "" {
		return ""
	}

	path := filepath.Join(c.stagingDir, it.ID+"-cover.jpg")
	if err := c.downloadTo(ctx, book.CoverURL, path); err != nil {
		c.log.Warn("cover art fetch failed, proceeding without art", "id", it.ID, "error", err)
		return ""
	}
	return path
}

func (c *Converter) downloadTo(ctx context.Context, srcURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write staging file: %w", err)
	}
	return f.Close()
}

func (c *Converter) removeStaging(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.log.Warn("failed to remove staging file", "path", path, "error", err)
	}
}
