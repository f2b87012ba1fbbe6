// Package monitor tracks one enqueued item through the engine until it
// reaches a terminal outcome, publishing progress along the way and
// handing completed downloads to the conversion stage.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/talefetch/talefetch/internal/convert"
	"github.com/talefetch/talefetch/internal/engine"
	"github.com/talefetch/talefetch/internal/events"
	"github.com/talefetch/talefetch/internal/item"
)

// DefaultPollInterval is the engine status poll cadence when the config
// does not override it.
const DefaultPollInterval = 2 * time.Second

// ConvertFunc runs the conversion stage for a finished download and
// returns the final library path.
type ConvertFunc func(ctx context.Context, it *item.WorkItem) (string, error)

// Monitor polls the engine for one item at a time. A Monitor is reusable
// across items; each Run call owns a single item's lifecycle.
type Monitor struct {
	engine   engine.Engine
	bus      *events.Bus
	convert  ConvertFunc
	interval time.Duration
	log      *slog.Logger
}

// New creates a monitor. A non-positive interval falls back to
// DefaultPollInterval.
func New(eng engine.Engine, bus *events.Bus, convertFn ConvertFunc, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		engine:   eng,
		bus:      bus,
		convert:  convertFn,
		interval: interval,
		log:      log.With("component", "monitor"),
	}
}

// Run tracks the item until it converts, fails, is cancelled, or ctx is
// done. onExit always runs last, so callers can key deregistration on it.
func (m *Monitor) Run(ctx context.Context, it *item.WorkItem, onExit func()) {
	if onExit != nil {
		defer onExit()
	}

	// Announce the item immediately rather than waiting out the first tick.
	m.bus.Publish(events.NewProgress(it.ID, events.StageDownloading, 0, 0, it.TotalBytes))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := m.poll(ctx, it); done {
				return
			}
		}
	}
}

// poll fetches the item's status once and dispatches on its state. It
// reports true when the monitor should stop.
func (m *Monitor) poll(ctx context.Context, it *item.WorkItem) bool {
	st, err := m.engine.Status(ctx, it.ID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		// Losing sight of the engine is indistinguishable from a dead
		// download; stop rather than poll blind.
		m.log.Error("status fetch failed, stopping", "id", it.ID, "error", err)
		m.bus.Publish(events.NewFailed(it.ID, it.Title, "engine status unavailable: "+err.Error()))
		return true
	}

	switch st.State {
	case engine.StateQueued, engine.StatePaused:
		// Nothing to report until bytes move again.
		return false

	case engine.StateDownloading:
		m.bus.Publish(events.NewProgress(it.ID, events.StageDownloading, st.Percent(), st.BytesDownloaded, st.TotalBytes))
		return false

	case engine.StateCompleted:
		m.finish(ctx, it)
		return true

	case engine.StateFailed:
		msg := st.Error
		if msg == "" {
			msg = "download failed"
		}
		m.log.Warn("download failed", "id", it.ID, "error", msg)
		m.bus.Publish(events.NewFailed(it.ID, it.Title, msg))
		return true

	case engine.StateCancelled:
		m.log.Debug("download cancelled", "id", it.ID)
		return true

	default:
		m.log.Warn("unknown engine state", "id", it.ID, "state", st.State)
		return false
	}
}

// finish runs the conversion stage synchronously. The converter publishes
// its own progress and completion events; only failures are reported here.
func (m *Monitor) finish(ctx context.Context, it *item.WorkItem) {
	if _, err := m.convert(ctx, it); err != nil {
		if ctx.Err() != nil {
			return
		}

		msg := "conversion failed"
		var vErr *convert.ValidationError
		if errors.As(err, &vErr) {
			msg = "converted file failed integrity validation"
		}
		m.log.Error("conversion failed", "id", it.ID, "error", err)
		m.bus.Publish(events.NewFailed(it.ID, it.Title, msg+": "+err.Error()))
	}
}
