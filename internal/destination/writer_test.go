package destination

import (
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talefetch/talefetch/internal/events"
	"github.com/talefetch/talefetch/internal/item"
	"github.com/talefetch/talefetch/internal/metadata"
	"github.com/talefetch/talefetch/internal/prefs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type writerFixture struct {
	writer  *Writer
	store   *prefs.MemoryStore
	bus     *events.Bus
	events  <-chan events.Event
	library string
	staging string
	it      *item.WorkItem
}

func newWriterFixture(t *testing.T) *writerFixture {
	t.Helper()

	library := t.TempDir()
	staging := t.TempDir()

	validated := filepath.Join(staging, "B00ABC123.m4b")
	require.NoError(t, os.WriteFile(validated, []byte("audio"), 0o644))

	store := prefs.NewMemoryStore()
	log := testLogger()
	bus := events.NewBus(log)
	t.Cleanup(func() { _ = bus.Close() })

	return &writerFixture{
		writer:  NewWriter(NewLocalStorage(), store, bus, log),
		store:   store,
		bus:     bus,
		events:  bus.Subscribe(events.EventCompleted, 4),
		library: library,
		staging: staging,
		it: &item.WorkItem{
			ID:             "B00ABC123",
			Title:          "Leviathan Wakes",
			DecryptedPath:  validated,
			DestinationDir: library,
		},
	}
}

func TestWriterWriteAuthorLayout(t *testing.T) {
	f := newWriterFixture(t)
	book := &metadata.Book{Title: "Leviathan Wakes", Authors: []string{"James S. A. Corey"}}

	finalPath, err := f.writer.Write(t.Context(), f.it, book, f.it.DecryptedPath, "")
	require.NoError(t, err)

	want := filepath.Join(f.library, "James S. A. Corey", "Leviathan Wakes", "Leviathan Wakes.m4b")
	assert.Equal(t, want, finalPath)
	assert.FileExists(t, finalPath)
	// The staging copy is gone once the placement succeeded.
	assert.NoFileExists(t, f.it.DecryptedPath)

	e := <-f.events
	completed, ok := e.(*events.Completed)
	require.True(t, ok)
	assert.Equal(t, "B00ABC123", completed.ItemID())
	assert.Equal(t, want, completed.FinalPath)
}

func TestWriterWriteFallsBackOnBadPattern(t *testing.T) {
	f := newWriterFixture(t)
	require.NoError(t, f.store.SetNamingPattern("nonsense"))

	finalPath, err := f.writer.Write(t.Context(), f.it, nil, f.it.DecryptedPath, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.library, "B00ABC123.m4b"), finalPath)
}

func TestWriterWriteUnwritableRoot(t *testing.T) {
	f := newWriterFixture(t)
	f.it.DestinationDir = filepath.Join(f.library, "does-not-exist")

	_, err := f.writer.Write(t.Context(), f.it, nil, f.it.DecryptedPath, "")
	assert.ErrorIs(t, err, ErrPermission)
	// Nothing succeeded, so the staging copy stays.
	assert.FileExists(t, f.it.DecryptedPath)
}

func TestWriterWriteReplacesExistingFile(t *testing.T) {
	f := newWriterFixture(t)
	require.NoError(t, f.store.SetNamingPattern(prefs.NamingFlat))
	require.NoError(t, os.WriteFile(filepath.Join(f.library, "Leviathan Wakes.m4b"), []byte("stale"), 0o644))

	finalPath, err := f.writer.Write(t.Context(), f.it, nil, f.it.DecryptedPath, "")
	require.NoError(t, err)

	content, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), content)
}

func TestWriterWriteClearsLedgerEntry(t *testing.T) {
	f := newWriterFixture(t)
	_, err := f.store.MarkPaused("B00ABC123")
	require.NoError(t, err)

	_, err = f.writer.Write(t.Context(), f.it, nil, f.it.DecryptedPath, "")
	require.NoError(t, err)

	paused, err := f.store.IsPaused("B00ABC123")
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestWriterWriteCompanionCover(t *testing.T) {
	f := newWriterFixture(t)
	require.NoError(t, f.store.SetCompanionCoverArt(true))

	coverPath := filepath.Join(f.staging, "cover-src.jpg")
	writeTestJPEG(t, coverPath, 1024, 768)

	book := &metadata.Book{Title: "Leviathan Wakes", Authors: []string{"James S. A. Corey"}}
	finalPath, err := f.writer.Write(t.Context(), f.it, book, f.it.DecryptedPath, coverPath)
	require.NoError(t, err)

	coverOut := filepath.Join(filepath.Dir(finalPath), "cover.jpg")
	require.FileExists(t, coverOut)

	fh, err := os.Open(coverOut)
	require.NoError(t, err)
	defer func() { _ = fh.Close() }()
	cfg, _, err := image.DecodeConfig(fh)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width)
	assert.Equal(t, 512, cfg.Height)
}

func TestWriterWriteCoverDisabledByDefault(t *testing.T) {
	f := newWriterFixture(t)

	coverPath := filepath.Join(f.staging, "cover-src.jpg")
	writeTestJPEG(t, coverPath, 64, 64)

	finalPath, err := f.writer.Write(t.Context(), f.it, nil, f.it.DecryptedPath, coverPath)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(finalPath), "cover.jpg"))
}

func TestWriterWriteBadCoverIsNonFatal(t *testing.T) {
	f := newWriterFixture(t)
	require.NoError(t, f.store.SetCompanionCoverArt(true))

	coverPath := filepath.Join(f.staging, "cover-src.jpg")
	require.NoError(t, os.WriteFile(coverPath, []byte("not an image"), 0o644))

	finalPath, err := f.writer.Write(t.Context(), f.it, nil, f.it.DecryptedPath, coverPath)
	require.NoError(t, err)
	assert.FileExists(t, finalPath)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(finalPath), "cover.jpg"))
}

func writeTestJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
}
