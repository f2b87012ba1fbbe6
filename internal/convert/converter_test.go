package convert

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talefetch/talefetch/internal/destination"
	"github.com/talefetch/talefetch/internal/events"
	"github.com/talefetch/talefetch/internal/item"
	"github.com/talefetch/talefetch/internal/metadata"
	"github.com/talefetch/talefetch/internal/prefs"
)

type converterFixture struct {
	conv   *Converter
	trans  *fakeTranscoder
	store  *prefs.MemoryStore
	bus    *events.Bus
	events <-chan events.Event
	it     *item.WorkItem
}

func newConverterFixture(t *testing.T, source metadata.Source, trans *fakeTranscoder, prober *fakeProber) *converterFixture {
	t.Helper()

	staging := t.TempDir()
	library := t.TempDir()

	it := &item.WorkItem{
		ID:             "B00ABC123",
		Title:          "Leviathan Wakes",
		EncryptedPath:  filepath.Join(staging, "B00ABC123.aaxc"),
		DecryptedPath:  filepath.Join(staging, "B00ABC123.m4b"),
		DestinationDir: library,
		Key:            "deadbeef",
		IV:             "cafebabe",
		TotalBytes:     1024,
	}
	require.NoError(t, os.WriteFile(it.EncryptedPath, []byte("encrypted"), 0o644))

	store := prefs.NewMemoryStore()
	require.NoError(t, store.SetNamingPattern(prefs.NamingFlat))

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	bus := events.NewBus(log)
	t.Cleanup(func() { _ = bus.Close() })

	writer := destination.NewWriter(destination.NewLocalStorage(), store, bus, log)
	conv := NewConverter(source, trans, prober, writer, bus, staging, log)

	return &converterFixture{
		conv:   conv,
		trans:  trans,
		store:  store,
		bus:    bus,
		events: bus.SubscribeAll(16),
		it:     it,
	}
}

func TestConverterSuccess(t *testing.T) {
	source := &fakeSource{book: &metadata.Book{
		ExternalID: "B00ABC123",
		Title:      "Leviathan Wakes",
		Authors:    []string{"James S. A. Corey"},
	}}
	trans := &fakeTranscoder{payload: []byte("decrypted audio")}
	f := newConverterFixture(t, source, trans, &fakeProber{duration: 3600})

	finalPath, err := f.conv.Convert(context.Background(), f.it)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.it.DestinationDir, "Leviathan Wakes.m4b"), finalPath)
	placed, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("decrypted audio"), placed)

	// Both staging artifacts are gone after a successful run.
	assert.NoFileExists(t, f.it.EncryptedPath)
	assert.NoFileExists(t, f.it.DecryptedPath)

	require.NotNil(t, f.trans.req)
	assert.Equal(t, "deadbeef", f.trans.req.Key)
	assert.Equal(t, "Leviathan Wakes", tagValue(t, f.trans.req.Tags, "title"))

	first := <-f.events
	progress, ok := first.(*events.Progress)
	require.True(t, ok)
	assert.Equal(t, events.StageDecrypting, progress.Stage)
}

func TestConverterMetadataMissingConvertsUntagged(t *testing.T) {
	source := &fakeSource{err: metadata.ErrNotFound}
	trans := &fakeTranscoder{payload: []byte("audio")}
	f := newConverterFixture(t, source, trans, &fakeProber{duration: 3600})

	finalPath, err := f.conv.Convert(context.Background(), f.it)
	require.NoError(t, err)

	// The item title still names the file; the tag set is empty.
	assert.Equal(t, filepath.Join(f.it.DestinationDir, "Leviathan Wakes.m4b"), finalPath)
	assert.Empty(t, f.trans.req.Tags)
	assert.Empty(t, f.trans.req.CoverArtPath)

	// The title search was attempted before giving up.
	assert.Equal(t, []string{"Leviathan Wakes"}, source.titleQueries)
}

func TestConverterMetadataTitleFallback(t *testing.T) {
	source := &fakeSource{
		err: metadata.ErrNotFound,
		titleBook: &metadata.Book{
			ExternalID: "B00XYZ789",
			Title:      "Leviathan Wakes",
			Authors:    []string{"James S. A. Corey"},
		},
	}
	trans := &fakeTranscoder{payload: []byte("audio")}
	f := newConverterFixture(t, source, trans, &fakeProber{duration: 3600})

	_, err := f.conv.Convert(context.Background(), f.it)
	require.NoError(t, err)

	// The id lookup missed but the title search supplied the tag set.
	assert.Equal(t, []string{"Leviathan Wakes"}, source.titleQueries)
	assert.Equal(t, "Leviathan Wakes", tagValue(t, f.trans.req.Tags, "title"))
	assert.Equal(t, "James S. A. Corey", tagValue(t, f.trans.req.Tags, "artist"))
}

func TestConverterMetadataTitleFallbackSkippedWithoutTitle(t *testing.T) {
	source := &fakeSource{
		err:       metadata.ErrNotFound,
		titleBook: &metadata.Book{Title: "Should Not Match"},
	}
	trans := &fakeTranscoder{payload: []byte("audio")}
	f := newConverterFixture(t, source, trans, &fakeProber{duration: 3600})
	f.it.Title = ""

	_, err := f.conv.Convert(context.Background(), f.it)
	require.NoError(t, err)

	assert.Empty(t, source.titleQueries)
	assert.Empty(t, f.trans.req.Tags)
}

func TestConverterTranscodeFailure(t *testing.T) {
	trans := &fakeTranscoder{err: assert.AnError}
	f := newConverterFixture(t, &fakeSource{err: metadata.ErrNotFound}, trans, &fakeProber{duration: 3600})

	_, err := f.conv.Convert(context.Background(), f.it)

	var tErr *TranscodeError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "B00ABC123", tErr.ItemID)

	// The encrypted input survives for a manual retry.
	assert.FileExists(t, f.it.EncryptedPath)
	assert.NoFileExists(t, f.it.DecryptedPath)
}

func TestConverterValidationFailure(t *testing.T) {
	trans := &fakeTranscoder{payload: []byte("corrupt audio")}
	prober := &fakeProber{
		duration: 3600,
		logs:     map[float64]string{900: "Error decoding frame"},
	}
	f := newConverterFixture(t, &fakeSource{err: metadata.ErrNotFound}, trans, prober)

	_, err := f.conv.Convert(context.Background(), f.it)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 1, vErr.Result.ErrorCount)

	// A corrupt product means both artifacts are discarded.
	assert.NoFileExists(t, f.it.EncryptedPath)
	assert.NoFileExists(t, f.it.DecryptedPath)
}

func TestConverterCoverArtFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	defer srv.Close()

	source := &fakeSource{book: &metadata.Book{
		Title:    "Leviathan Wakes",
		CoverURL: srv.URL + "/cover.jpg",
	}}
	trans := &fakeTranscoder{payload: []byte("audio")}
	f := newConverterFixture(t, source, trans, &fakeProber{duration: 3600})

	_, err := f.conv.Convert(context.Background(), f.it)
	require.NoError(t, err)

	require.NotEmpty(t, f.trans.req.CoverArtPath)
	// Cover staging is transient and cleaned up with the run.
	assert.NoFileExists(t, f.trans.req.CoverArtPath)
}

func TestConverterCoverArtFetchFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	source := &fakeSource{book: &metadata.Book{
		Title:    "Leviathan Wakes",
		CoverURL: srv.URL + "/cover.jpg",
	}}
	trans := &fakeTranscoder{payload: []byte("audio")}
	f := newConverterFixture(t, source, trans, &fakeProber{duration: 3600})

	_, err := f.conv.Convert(context.Background(), f.it)
	require.NoError(t, err)
	assert.Empty(t, f.trans.req.CoverArtPath)
}

func TestConverterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trans := &fakeTranscoder{err: context.Canceled}
	f := newConverterFixture(t, &fakeSource{err: metadata.ErrNotFound}, trans, &fakeProber{duration: 3600})

	_, err := f.conv.Convert(ctx, f.it)
	assert.ErrorIs(t, err, context.Canceled)
}
