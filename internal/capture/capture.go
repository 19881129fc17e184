// Package capture drives the scroll driver through a plan, producing one
// image tile per planned offset and streaming each tile to a persistence
// sink as soon as it is captured.
package capture

import (
	"context"
	"fmt"
	"time"
)

// Driver is the slice of the scroll-driver contract the orchestrator needs.
// ScrollTo reports the settled content height observed after the scroll so
// drift against the plan can be detected. Settle applies whichever wait
// strategy was configured for the session.
type Driver interface {
	ScrollTo(ctx context.Context, offset int) (settledHeight int, err error)
	Settle(ctx context.Context) error
	CaptureViewport(ctx context.Context) ([]byte, error)
	ContentHeight(ctx context.Context) (int, error)
}

// Tile is one viewport-sized capture. Tiles are immutable once created;
// index order is capture order and equals vertical order in the final image.
type Tile struct {
	Index         int       `json:"index"` // 1-based, sequential, gap-free
	Offset        int       `json:"offset"`
	PlannedHeight int       `json:"planned_height"`
	SettledHeight int       `json:"settled_height"`
	Data          []byte    `json:"-"`
	CapturedAt    time.Time `json:"captured_at"`
}

// Sink receives each tile as it is produced. Implementations persist the
// tile durably before returning; the orchestrator never buffers tiles to the
// end of the run.
type Sink interface {
	WriteTile(tile Tile) error
}

// Error represents a failed capture pipeline for one page. Tiles captured
// before the failure remain persisted and usable.
type Error struct {
	URL       string
	Stage     string // "navigate", "plan", "scroll", "capture", "persist", "cancelled"
	TilesDone int
	Cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture failed for %s at stage %s after %d tiles: %v", e.URL, e.Stage, e.TilesDone, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ProgressEvent is emitted as the capture advances.
type ProgressEvent struct {
	URL     string `json:"url"`
	Stage   string `json:"stage"`
	Tile    int    `json:"tile,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	Message string `json:"message"`
}

// ProgressCallback is invoked for each progress event, when configured.
type ProgressCallback func(event ProgressEvent)
