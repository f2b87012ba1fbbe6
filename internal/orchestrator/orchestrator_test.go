package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/talefetch/talefetch/internal/engine"
	"github.com/talefetch/talefetch/internal/engine/mocks"
	"github.com/talefetch/talefetch/internal/events"
	"github.com/talefetch/talefetch/internal/item"
	"github.com/talefetch/talefetch/internal/license"
	"github.com/talefetch/talefetch/internal/monitor"
	"github.com/talefetch/talefetch/internal/netwatch"
	"github.com/talefetch/talefetch/internal/prefs"
)

type fixture struct {
	orch   *Orchestrator
	eng    *mocks.MockEngine
	store  *prefs.MemoryStore
	bus    *events.Bus
	events <-chan events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	store := prefs.NewMemoryStore()
	log := testLogger()
	bus := events.NewBus(log)

	// An hour-long poll interval keeps test monitors from ever hitting
	// the engine; their lifecycle is exercised via cancellation.
	mon := monitor.New(eng, bus, func(_ context.Context, _ *item.WorkItem) (string, error) {
		return "", nil
	}, time.Hour, log)

	orch := New(Config{
		Engine:         eng,
		Licenses:       &fakeLicenses{rights: &license.Rights{DownloadURL: "https://cdn.example.com/item", Key: "k", IV: "iv", TotalBytes: 2048}},
		Monitor:        mon,
		Arbiter:        netwatch.NewArbiter(eng, store, &stubWatcher{available: true}, log),
		Store:          store,
		Bus:            bus,
		StagingDir:     t.TempDir(),
		DestinationDir: t.TempDir(),
		Logger:         log,
	})
	t.Cleanup(orch.Shutdown)

	return &fixture{
		orch:   orch,
		eng:    eng,
		store:  store,
		bus:    bus,
		events: bus.SubscribeAll(16),
	}
}

func TestEnqueueStartsMonitor(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().
		Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req engine.Request) (string, error) {
			assert.Equal(t, "B00ABC123", req.ID)
			assert.Equal(t, "https://cdn.example.com/item", req.URL)
			assert.Equal(t, int64(2048), req.TotalBytes)
			return req.ID, nil
		})

	require.NoError(t, f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes"))
	assert.True(t, f.orch.Monitoring("B00ABC123"))

	select {
	case e := <-f.events:
		progress, ok := e.(*events.Progress)
		require.True(t, ok)
		assert.Equal(t, "B00ABC123", progress.ItemID())
		assert.Equal(t, events.StageDownloading, progress.Stage)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial progress event")
	}
}

func TestEnqueueLicenseDenied(t *testing.T) {
	f := newFixture(t)
	f.orch.licenses = &fakeLicenses{err: license.ErrDenied}

	err := f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes")
	assert.ErrorIs(t, err, license.ErrDenied)
	assert.False(t, f.orch.Monitoring("B00ABC123"))
}

func TestEnqueueEngineFailure(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("", assert.AnError)

	err := f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes")
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, f.orch.Monitoring("B00ABC123"))
}

func TestEnqueueReplacesExistingMonitor(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("B00ABC123", nil).Times(2)

	require.NoError(t, f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes"))
	require.NoError(t, f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes"))

	// The replacement holds the registration; the old monitor's exit
	// must not tear it down.
	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.orch.Monitoring("B00ABC123"))
}

func TestManualPause(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().Pause(gomock.Any(), "B00ABC123").Return(nil)

	require.NoError(t, f.orch.ManualPause(context.Background(), "B00ABC123"))

	paused, err := f.store.IsPaused("B00ABC123")
	require.NoError(t, err)
	assert.True(t, paused)
}

func TestManualPauseRollsBackLedgerOnEngineFailure(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().Pause(gomock.Any(), "B00ABC123").Return(assert.AnError)

	err := f.orch.ManualPause(context.Background(), "B00ABC123")
	assert.ErrorIs(t, err, assert.AnError)

	paused, err := f.store.IsPaused("B00ABC123")
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestManualPauseKeepsPriorLedgerEntryOnEngineFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.MarkPaused("B00ABC123")
	require.NoError(t, err)
	f.eng.EXPECT().Pause(gomock.Any(), "B00ABC123").Return(assert.AnError)

	require.Error(t, f.orch.ManualPause(context.Background(), "B00ABC123"))

	// The entry predates this call, so the rollback must not touch it.
	paused, err := f.store.IsPaused("B00ABC123")
	require.NoError(t, err)
	assert.True(t, paused)
}

func TestManualResumeClearsLedger(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.MarkPaused("B00ABC123")
	require.NoError(t, err)
	f.eng.EXPECT().Resume(gomock.Any(), "B00ABC123").Return(nil)

	require.NoError(t, f.orch.ManualResume(context.Background(), "B00ABC123"))

	paused, err := f.store.IsPaused("B00ABC123")
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestManualResumeEngineFailureKeepsLedger(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.MarkPaused("B00ABC123")
	require.NoError(t, err)
	f.eng.EXPECT().Resume(gomock.Any(), "B00ABC123").Return(assert.AnError)

	require.Error(t, f.orch.ManualResume(context.Background(), "B00ABC123"))

	paused, err := f.store.IsPaused("B00ABC123")
	require.NoError(t, err)
	assert.True(t, paused)
}

func TestCancelStopsMonitorAndClearsLedger(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("B00ABC123", nil)
	f.eng.EXPECT().Cancel(gomock.Any(), "B00ABC123").Return(nil)
	require.NoError(t, f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes"))
	_, err := f.store.MarkPaused("B00ABC123")
	require.NoError(t, err)

	require.NoError(t, f.orch.Cancel(context.Background(), "B00ABC123"))

	assert.False(t, f.orch.Monitoring("B00ABC123"))
	paused, err := f.store.IsPaused("B00ABC123")
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().Cancel(gomock.Any(), "B00ABC123").Return(nil)
	f.eng.EXPECT().Cancel(gomock.Any(), "B00ABC123").Return(assert.AnError)

	require.NoError(t, f.orch.Cancel(context.Background(), "B00ABC123"))
	// A second cancel finds nothing; the engine refusal is not an error.
	require.NoError(t, f.orch.Cancel(context.Background(), "B00ABC123"))
}

func TestStopMonitoring(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("B00ABC123", nil)
	require.NoError(t, f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes"))

	require.NoError(t, f.orch.StopMonitoring("B00ABC123"))
	assert.False(t, f.orch.Monitoring("B00ABC123"))
}

func TestSetRestrictedOnlyDelegatesToArbiter(t *testing.T) {
	f := newFixture(t)
	// Network is present in the fixture, so enabling the policy runs a
	// resume sweep over the paused queue.
	f.eng.EXPECT().ListByState(gomock.Any(), engine.StatePaused).Return(nil, nil)

	require.NoError(t, f.orch.SetRestrictedOnly(context.Background(), true))

	restricted, err := f.store.RestrictedOnly()
	require.NoError(t, err)
	assert.True(t, restricted)
}

func TestShutdownStopsEverything(t *testing.T) {
	f := newFixture(t)
	f.eng.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("B00ABC123", nil)
	require.NoError(t, f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes"))

	f.orch.Shutdown()

	assert.False(t, f.orch.Monitoring("B00ABC123"))
	// Publishing after shutdown is a silent no-op.
	f.bus.Publish(events.NewFailed("B00ABC123", "t", "late"))

	// Shutdown is idempotent.
	f.orch.Shutdown()
}

func TestEnqueueAfterShutdownStartsNoMonitor(t *testing.T) {
	f := newFixture(t)
	f.orch.Shutdown()
	f.eng.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("B00ABC123", nil)

	require.NoError(t, f.orch.Enqueue(context.Background(), "B00ABC123", "Leviathan Wakes"))
	assert.False(t, f.orch.Monitoring("B00ABC123"))
}
