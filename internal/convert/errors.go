package convert

import "fmt"

// TranscodeError reports a failed transcode attempt. The encrypted input
// is retained for manual retry.
type TranscodeError struct {
	ItemID string
	Log    string
	Err    error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.ItemID, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ValidationError reports a produced file that failed integrity
// validation. Both staging artifacts are deleted before this is returned,
// so callers can message "corrupted" instead of "conversion failed".
type ValidationError struct {
	ItemID string
	Result *ValidationResult
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation %s: %s", e.ItemID, e.Result.ErrorMessage)
}
