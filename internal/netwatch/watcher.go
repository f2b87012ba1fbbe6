// Package netwatch observes network connectivity and enforces the
// restricted-network-only download policy against the engine.
package netwatch

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Watcher reports whether a qualifying network is currently available and
// notifies subscribers on availability transitions.
type Watcher interface {
	// Available returns the last observed availability.
	Available() bool
	// Subscribe returns a channel carrying availability transitions and
	// an unregister func. Only changes are delivered, never the current
	// value.
	Subscribe() (<-chan bool, func())
}

// DefaultCheckInterval is the connectivity probe cadence when the config
// does not override it.
const DefaultCheckInterval = 15 * time.Second

// Static is a Watcher pinned to one availability, for deployments with no
// check URL configured. It never transitions.
type Static bool

func (s Static) Available() bool { return bool(s) }

func (s Static) Subscribe() (<-chan bool, func()) {
	return make(chan bool), func() {}
}

// HTTPWatcher observes connectivity by probing a check URL. The URL is
// expected to be reachable only over the qualifying network, so a failed
// probe means "not on the permitted network", not just "offline".
type HTTPWatcher struct {
	checkURL string
	interval time.Duration
	client   *http.Client
	log      *slog.Logger

	mu        sync.Mutex
	available bool
	subs      map[chan bool]struct{}
}

// NewHTTPWatcher creates a watcher. A non-positive interval falls back to
// DefaultCheckInterval. Availability starts false until the first probe.
func NewHTTPWatcher(checkURL string, interval time.Duration, log *slog.Logger) *HTTPWatcher {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPWatcher{
		checkURL: checkURL,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.With("component", "netwatch"),
		subs:     make(map[chan bool]struct{}),
	}
}

// Available returns the last observed availability.
func (w *HTTPWatcher) Available() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.available
}

// Subscribe registers a transition channel.
func (w *HTTPWatcher) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 4)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()

	unsub := func() {
		w.mu.Lock()
		delete(w.subs, ch)
		w.mu.Unlock()
	}
	return ch, unsub
}

// Run probes the check URL until ctx is done. The first probe happens
// immediately so callers see real availability soon after startup.
func (w *HTTPWatcher) Run(ctx context.Context) error {
	w.probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *HTTPWatcher) probe(ctx context.Context) {
	available := w.check(ctx)
	if ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	changed := available != w.available
	w.available = available
	var subs []chan bool
	if changed {
		for ch := range w.subs {
			subs = append(subs, ch)
		}
	}
	w.mu.Unlock()

	if !changed {
		return
	}
	w.log.Info("network availability changed", "available", available)
	for _, ch := range subs {
		select {
		case ch <- available:
		default:
			// A stalled subscriber sees the next transition instead.
		}
	}
}

func (w *HTTPWatcher) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.checkURL, nil)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < 400
}
