package netwatch

import (
	"context"
	"sync"

	"github.com/talefetch/talefetch/internal/engine"
)

// fakeWatcher is a hand-driven Watcher.
type fakeWatcher struct {
	mu        sync.Mutex
	available bool
	subs      map[chan bool]struct{}
}

func newFakeWatcher(available bool) *fakeWatcher {
	return &fakeWatcher{available: available, subs: make(map[chan bool]struct{})}
}

func (w *fakeWatcher) Available() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.available
}

func (w *fakeWatcher) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 4)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()
	return ch, func() {
		w.mu.Lock()
		delete(w.subs, ch)
		w.mu.Unlock()
	}
}

// set flips availability and notifies subscribers.
func (w *fakeWatcher) set(available bool) {
	w.mu.Lock()
	w.available = available
	for ch := range w.subs {
		ch <- available
	}
	w.mu.Unlock()
}

// sweepEngine serves canned per-state listings and records control calls.
type sweepEngine struct {
	engine.Engine

	mu       sync.Mutex
	byState  map[engine.State][]*engine.Status
	pauseErr map[string]error
	paused   []string
	resumed  []string
}

func newSweepEngine() *sweepEngine {
	return &sweepEngine{
		byState:  make(map[engine.State][]*engine.Status),
		pauseErr: make(map[string]error),
	}
}

func (e *sweepEngine) ListByState(_ context.Context, state engine.State) ([]*engine.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.byState[state], nil
}

func (e *sweepEngine) Pause(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pauseErr[id]; err != nil {
		return err
	}
	e.paused = append(e.paused, id)
	return nil
}

func (e *sweepEngine) Resume(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumed = append(e.resumed, id)
	return nil
}

func (e *sweepEngine) pausedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.paused...)
}

func (e *sweepEngine) resumedIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.resumed...)
}
