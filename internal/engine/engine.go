// Package engine defines the narrow status/control surface of the external
// queued-download engine. The pipeline core observes downloads exclusively
// through this interface; byte transfer, range resumption, and on-disk task
// persistence are the engine's problem.
package engine

import (
	"context"
)

// State tracks download state as reported by the engine.
type State string

const (
	StateQueued      State = "queued"
	StateDownloading State = "downloading"
	StatePaused      State = "paused"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

// IsTerminal returns true if the engine will never advance this state on its own.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Status is a point-in-time snapshot of one download, owned and mutated by
// the engine; read-only from this core's perspective.
type Status struct {
	ID              string
	State           State
	BytesDownloaded int64
	TotalBytes      int64
	Error           string // engine-supplied message, set when State is failed
}

// Percent returns download completion as 0-100.
func (s *Status) Percent() int {
	if s.TotalBytes <= 0 {
		return 0
	}
	pct := int(s.BytesDownloaded * 100 / s.TotalBytes)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Request describes a new download for the engine to enqueue.
type Request struct {
	ID         string // external item id, reused as the engine-side key
	URL        string
	OutputPath string
	TotalBytes int64
}

//go:generate mockgen -destination=mocks/engine_mock.go -package=mocks github.com/talefetch/talefetch/internal/engine Engine

// Engine is the download engine's status/control interface.
type Engine interface {
	// Enqueue registers a new download and returns the engine-side id.
	Enqueue(ctx context.Context, req Request) (string, error)
	// Status returns the status of a download.
	Status(ctx context.Context, id string) (*Status, error)
	// ListByState returns all downloads currently in the given state.
	ListByState(ctx context.Context, state State) ([]*Status, error)
	// Pause suspends an active download.
	Pause(ctx context.Context, id string) error
	// Resume restarts a paused download.
	Resume(ctx context.Context, id string) error
	// Cancel removes a download from the engine.
	Cancel(ctx context.Context, id string) error
}
