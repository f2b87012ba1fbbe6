// Package orchestrator is the facade over the acquisition pipeline:
// enqueueing, manual pause/resume, cancellation, network policy, and
// shutdown. Callers hold one Orchestrator and never touch the engine or
// monitors directly.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/talefetch/talefetch/internal/engine"
	"github.com/talefetch/talefetch/internal/events"
	"github.com/talefetch/talefetch/internal/item"
	"github.com/talefetch/talefetch/internal/license"
	"github.com/talefetch/talefetch/internal/monitor"
	"github.com/talefetch/talefetch/internal/netwatch"
	"github.com/talefetch/talefetch/internal/prefs"
)

// runningMonitor tracks one item's live monitor.
type runningMonitor struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator wires the pipeline components behind the public surface.
type Orchestrator struct {
	engine   engine.Engine
	licenses license.Service
	monitor  *monitor.Monitor
	arbiter  *netwatch.Arbiter
	store    prefs.Store
	bus      *events.Bus
	log      *slog.Logger

	stagingDir     string
	destinationDir string

	mu       sync.Mutex
	monitors map[string]*runningMonitor
	closed   bool
}

// Config carries the orchestrator's collaborators and paths.
type Config struct {
	Engine         engine.Engine
	Licenses       license.Service
	Monitor        *monitor.Monitor
	Arbiter        *netwatch.Arbiter
	Store          prefs.Store
	Bus            *events.Bus
	StagingDir     string
	DestinationDir string
	Logger         *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		engine:         cfg.Engine,
		licenses:       cfg.Licenses,
		monitor:        cfg.Monitor,
		arbiter:        cfg.Arbiter,
		store:          cfg.Store,
		bus:            cfg.Bus,
		stagingDir:     cfg.StagingDir,
		destinationDir: cfg.DestinationDir,
		log:            log.With("component", "orchestrator"),
		monitors:       make(map[string]*runningMonitor),
	}
}

// Enqueue obtains download rights for the item, hands the download to the
// engine, and starts a monitor for it. An existing monitor for the same id
// is replaced.
func (o *Orchestrator) Enqueue(ctx context.Context, externalID, title string) error {
	rights, err := o.licenses.Rights(ctx, externalID)
	if err != nil {
		return fmt.Errorf("obtain rights for %s: %w", externalID, err)
	}

	it := &item.WorkItem{
		ID:             externalID,
		Title:          title,
		EncryptedPath:  filepath.Join(o.stagingDir, externalID+".aaxc"),
		DecryptedPath:  filepath.Join(o.stagingDir, externalID+".m4b"),
		DestinationDir: o.destinationDir,
		Key:            rights.Key,
		IV:             rights.IV,
		TotalBytes:     rights.TotalBytes,
	}

	if _, err := o.engine.Enqueue(ctx, engine.Request{
		ID:         externalID,
		URL:        rights.DownloadURL,
		OutputPath: it.EncryptedPath,
		TotalBytes: rights.TotalBytes,
	}); err != nil {
		return fmt.Errorf("enqueue %s: %w", externalID, err)
	}

	o.startMonitor(it)
	o.log.Info("item enqueued", "id", externalID, "title", title)
	return nil
}

// startMonitor launches a monitor for the item, replacing and cancelling
// any prior monitor under the same id.
func (o *Orchestrator) startMonitor(it *item.WorkItem) {
	ctx, cancel := context.WithCancel(context.Background())
	rm := &runningMonitor{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		close(rm.done)
		return
	}
	if prev, ok := o.monitors[it.ID]; ok {
		prev.cancel()
		o.log.Debug("replacing monitor", "id", it.ID)
	}
	o.monitors[it.ID] = rm
	o.mu.Unlock()

	go func() {
		defer close(rm.done)
		o.monitor.Run(ctx, it, func() { o.dropMonitor(it.ID, rm) })
	}()
}

// dropMonitor deregisters an exited monitor, unless it has already been
// replaced by a newer one for the same id.
func (o *Orchestrator) dropMonitor(id string, rm *runningMonitor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, ok := o.monitors[id]; ok && current == rm {
		delete(o.monitors, id)
	}
}

// ManualPause records the user's pause in the ledger and suspends the
// download. The ledger entry is rolled back if the engine refuses, so a
// failed pause leaves no stale "user paused this" record.
func (o *Orchestrator) ManualPause(ctx context.Context, id string) error {
	created, err := o.store.MarkPaused(id)
	if err != nil {
		return fmt.Errorf("mark paused %s: %w", id, err)
	}

	if err := o.engine.Pause(ctx, id); err != nil {
		if created {
			if _, clearErr := o.store.ClearPaused(id); clearErr != nil {
				o.log.Error("failed to roll back ledger entry", "id", id, "error", clearErr)
			}
		}
		return fmt.Errorf("pause %s: %w", id, err)
	}

	o.log.Info("manually paused", "id", id)
	return nil
}

// ManualResume restarts the download and clears the user's ledger entry.
func (o *Orchestrator) ManualResume(ctx context.Context, id string) error {
	if err := o.engine.Resume(ctx, id); err != nil {
		return fmt.Errorf("resume %s: %w", id, err)
	}
	if _, err := o.store.ClearPaused(id); err != nil {
		return fmt.Errorf("clear ledger entry %s: %w", id, err)
	}

	o.log.Info("manually resumed", "id", id)
	return nil
}

// Cancel removes the download from the engine, stops its monitor, and
// clears any ledger entry. Cancelling an unknown or already-cancelled id
// is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	if err := o.engine.Cancel(ctx, id); err != nil {
		o.log.Warn("engine cancel failed", "id", id, "error", err)
	}

	o.stopMonitor(id)

	if _, err := o.store.ClearPaused(id); err != nil {
		return fmt.Errorf("clear ledger entry %s: %w", id, err)
	}

	o.log.Info("cancelled", "id", id)
	return nil
}

// StopMonitoring cancels the item's monitor without touching the engine,
// and clears any ledger entry.
func (o *Orchestrator) StopMonitoring(id string) error {
	o.stopMonitor(id)
	if _, err := o.store.ClearPaused(id); err != nil {
		return fmt.Errorf("clear ledger entry %s: %w", id, err)
	}
	return nil
}

func (o *Orchestrator) stopMonitor(id string) {
	o.mu.Lock()
	rm, ok := o.monitors[id]
	if ok {
		delete(o.monitors, id)
	}
	o.mu.Unlock()

	if !ok {
		return
	}
	rm.cancel()
	<-rm.done
}

// SetRestrictedOnly updates the network policy.
func (o *Orchestrator) SetRestrictedOnly(ctx context.Context, enabled bool) error {
	return o.arbiter.SetRestrictedOnly(ctx, enabled)
}

// Monitoring reports whether a monitor is currently running for the id.
func (o *Orchestrator) Monitoring(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.monitors[id]
	return ok
}

// Shutdown cancels every monitor, releases the network observation, and
// closes the event bus. The orchestrator accepts no new work afterwards.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	running := make([]*runningMonitor, 0, len(o.monitors))
	for _, rm := range o.monitors {
		running = append(running, rm)
	}
	o.monitors = make(map[string]*runningMonitor)
	o.mu.Unlock()

	for _, rm := range running {
		rm.cancel()
	}
	for _, rm := range running {
		<-rm.done
	}

	if o.arbiter != nil {
		o.arbiter.Stop()
	}
	if err := o.bus.Close(); err != nil {
		o.log.Warn("event bus close failed", "error", err)
	}
	o.log.Info("orchestrator shut down")
}
