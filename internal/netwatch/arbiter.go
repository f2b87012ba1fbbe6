package netwatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talefetch/talefetch/internal/engine"
	"github.com/talefetch/talefetch/internal/prefs"
)

// Arbiter applies the restricted-network-only policy: while the policy is
// on and the qualifying network is away, active downloads are paused; when
// the network returns they are resumed, except the ones the user paused
// personally (the manual-pause ledger). The arbiter never writes ledger
// entries.
type Arbiter struct {
	engine  engine.Engine
	store   prefs.Store
	watcher Watcher
	log     *slog.Logger

	mu             sync.Mutex
	restrictedOnly bool
	unsubscribe    func()
	stop           chan struct{}
	done           chan struct{}
}

// NewArbiter creates an arbiter. Call Start to load persisted state and
// begin observing connectivity.
func NewArbiter(eng engine.Engine, store prefs.Store, watcher Watcher, log *slog.Logger) *Arbiter {
	if log == nil {
		log = slog.Default()
	}
	return &Arbiter{
		engine:  eng,
		store:   store,
		watcher: watcher,
		log:     log.With("component", "arbiter"),
	}
}

// Start loads the persisted restricted-only flag and registers for
// connectivity transitions. ctx bounds the sweeps triggered by
// transitions.
func (a *Arbiter) Start(ctx context.Context) error {
	restricted, err := a.store.RestrictedOnly()
	if err != nil {
		return fmt.Errorf("load restricted-only preference: %w", err)
	}

	a.mu.Lock()
	a.restrictedOnly = restricted
	transitions, unsub := a.watcher.Subscribe()
	a.unsubscribe = unsub
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	stop, done := a.stop, a.done
	a.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case available, ok := <-transitions:
				if !ok {
					return
				}
				a.onTransition(ctx, available)
			}
		}
	}()

	a.log.Info("arbiter started", "restricted_only", restricted, "network_available", a.watcher.Available())
	return nil
}

// Stop unregisters the connectivity observation and waits for the
// transition loop to wind down.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	unsub := a.unsubscribe
	stop, done := a.stop, a.done
	a.unsubscribe = nil
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if unsub == nil {
		return
	}
	unsub()
	close(stop)
	<-done
}

// SetRestrictedOnly persists the policy flag and immediately reconciles
// the engine queue with the new policy.
func (a *Arbiter) SetRestrictedOnly(ctx context.Context, enabled bool) error {
	if err := a.store.SetRestrictedOnly(enabled); err != nil {
		return fmt.Errorf("persist restricted-only preference: %w", err)
	}

	a.mu.Lock()
	a.restrictedOnly = enabled
	a.mu.Unlock()

	a.log.Info("restricted-only mode changed", "enabled", enabled)

	if enabled && !a.watcher.Available() {
		a.pauseSweep(ctx)
		return nil
	}
	// Disabled, or enabled while the network is present: nothing should
	// stay paused on the policy's account.
	a.resumeSweep(ctx)
	return nil
}

func (a *Arbiter) onTransition(ctx context.Context, available bool) {
	a.mu.Lock()
	restricted := a.restrictedOnly
	a.mu.Unlock()

	if !restricted {
		return
	}
	if available {
		a.resumeSweep(ctx)
	} else {
		a.pauseSweep(ctx)
	}
}

// pauseSweep pauses everything currently downloading. Each id is
// independent; one failed call never aborts the rest.
func (a *Arbiter) pauseSweep(ctx context.Context) {
	statuses, err := a.engine.ListByState(ctx, engine.StateDownloading)
	if err != nil {
		a.log.Error("pause sweep: list downloading failed", "error", err)
		return
	}

	for _, st := range statuses {
		if err := a.engine.Pause(ctx, st.ID); err != nil {
			a.log.Error("pause sweep: pause failed", "id", st.ID, "error", err)
			continue
		}
		a.log.Info("paused by network policy", "id", st.ID)
	}
}

// resumeSweep resumes paused items that are not in the manual-pause
// ledger. Membership is re-checked per id right before the resume call to
// narrow the race with a concurrent manual pause.
func (a *Arbiter) resumeSweep(ctx context.Context) {
	statuses, err := a.engine.ListByState(ctx, engine.StatePaused)
	if err != nil {
		a.log.Error("resume sweep: list paused failed", "error", err)
		return
	}

	for _, st := range statuses {
		ledgered, err := a.store.IsPaused(st.ID)
		if err != nil {
			a.log.Error("resume sweep: ledger check failed", "id", st.ID, "error", err)
			continue
		}
		if ledgered {
			a.log.Debug("resume sweep: skipping user-paused item", "id", st.ID)
			continue
		}
		if err := a.engine.Resume(ctx, st.ID); err != nil {
			a.log.Error("resume sweep: resume failed", "id", st.ID, "error", err)
			continue
		}
		a.log.Info("resumed by network policy", "id", st.ID)
	}
}
