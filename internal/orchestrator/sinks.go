package orchestrator

import (
	"sync"

	"github.com/talefetch/talefetch/internal/events"
)

// Callback signatures for pipeline outcomes. Callbacks run on the sink's
// dispatch goroutine; slow callbacks delay later deliveries but never
// block the pipeline itself.
type (
	ProgressFunc   func(e *events.Progress)
	CompletionFunc func(e *events.Completed)
	FailureFunc    func(e *events.Failed)
)

// Sinks fans pipeline events out to registered callbacks. It is a thin
// subscriber over the event bus; registration order is delivery order.
type Sinks struct {
	mu        sync.Mutex
	progress  []ProgressFunc
	completed []CompletionFunc
	failed    []FailureFunc
	done      chan struct{}
}

// NewSinks subscribes to the bus and starts the dispatch loop. The loop
// ends when the bus closes.
func NewSinks(bus *events.Bus) *Sinks {
	s := &Sinks{done: make(chan struct{})}
	ch := bus.SubscribeAll(64)

	go func() {
		defer close(s.done)
		for e := range ch {
			s.dispatch(e)
		}
	}()
	return s
}

// OnProgress registers a progress callback.
func (s *Sinks) OnProgress(fn ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, fn)
}

// OnCompletion registers a completion callback.
func (s *Sinks) OnCompletion(fn CompletionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, fn)
}

// OnFailure registers a failure callback.
func (s *Sinks) OnFailure(fn FailureFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, fn)
}

// Wait blocks until the dispatch loop has drained, which happens when the
// bus closes. Useful during shutdown.
func (s *Sinks) Wait() {
	<-s.done
}

func (s *Sinks) dispatch(e events.Event) {
	s.mu.Lock()
	progress := append([]ProgressFunc(nil), s.progress...)
	completed := append([]CompletionFunc(nil), s.completed...)
	failed := append([]FailureFunc(nil), s.failed...)
	s.mu.Unlock()

	switch ev := e.(type) {
	case *events.Progress:
		for _, fn := range progress {
			fn(ev)
		}
	case *events.Completed:
		for _, fn := range completed {
			fn(ev)
		}
	case *events.Failed:
		for _, fn := range failed {
			fn(ev)
		}
	}
}
