package engine

import "errors"

// Sentinel errors for the engine package.
var (
	// ErrUnavailable is returned when the engine cannot be reached.
	ErrUnavailable = errors.New("download engine unavailable")

	// ErrInvalidAPIKey is returned when the API key is rejected by the engine.
	ErrInvalidAPIKey = errors.New("invalid api key")

	// ErrNotFound is returned when the engine has no record of the id.
	ErrNotFound = errors.New("download not found in engine")
)
