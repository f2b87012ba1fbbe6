package events

// Stage identifies which phase of the pipeline a progress event belongs to.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageDecrypting  Stage = "decrypting"
	StageCopying     Stage = "copying"
)

// Event type constants
const (
	EventProgress  = "item.progress"
	EventCompleted = "item.completed"
	EventFailed    = "item.failed"
)

// Progress is emitted as an item advances through a pipeline stage.
type Progress struct {
	BaseEvent
	Stage           Stage `json:"stage"`
	Percent         int   `json:"percent"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
	TotalBytes      int64 `json:"total_bytes"`
}

// Completed is emitted once when an item reaches its final destination.
type Completed struct {
	BaseEvent
	Title     string `json:"title"`
	FinalPath string `json:"final_path"`
}

// Failed is emitted once when an item's pipeline ends in an error.
type Failed struct {
	BaseEvent
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NewProgress builds a progress event for an item.
func NewProgress(itemID string, stage Stage, percent int, bytes, total int64) *Progress {
	return &Progress{
		BaseEvent:       NewBaseEvent(EventProgress, itemID),
		Stage:           stage,
		Percent:         percent,
		BytesDownloaded: bytes,
		TotalBytes:      total,
	}
}

// NewCompleted builds a completion event for an item.
func NewCompleted(itemID, title, finalPath string) *Completed {
	return &Completed{
		BaseEvent: NewBaseEvent(EventCompleted, itemID),
		Title:     title,
		FinalPath: finalPath,
	}
}

// NewFailed builds a failure event for an item.
func NewFailed(itemID, title, message string) *Failed {
	return &Failed{
		BaseEvent: NewBaseEvent(EventFailed, itemID),
		Title:     title,
		Message:   message,
	}
}
