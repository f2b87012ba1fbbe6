package destination

import "errors"

// Sentinel errors for the destination package.
var (
	// ErrPermission is returned when the destination root is not writable.
	ErrPermission = errors.New("destination not writable")

	// ErrDirectoryCreate is returned when an intermediate directory
	// cannot be created.
	ErrDirectoryCreate = errors.New("create destination directory")

	// ErrCopyFailed is returned when streaming the artifact to the
	// destination fails. Nothing destructive has happened to the
	// staging copy when this is returned.
	ErrCopyFailed = errors.New("copy to destination failed")
)
