package capture

import (
	"context"
	"log"
	"time"

	"github.com/avasile/scrollsnap/internal/plan"
)

// Planner is the incremental plan source the orchestrator consumes. Each
// Next call may re-measure the page, so it must be interleaved with the
// scroll-and-settle steps.
type Planner interface {
	Next(ctx context.Context) (plan.Step, bool, error)
	HeightUnstable() bool
	Truncated() bool
}

// Options configures an Orchestrator.
type Options struct {
	URL        string
	Driver     Driver
	Planner    Planner
	Sink       Sink
	OnProgress ProgressCallback
	Verbose    bool
}

// Result summarizes one page's capture. Tile data is not retained here; it
// was already streamed to the sink.
type Result struct {
	URL            string      `json:"url"`
	Tiles          []Tile      `json:"tiles"`
	Plan           []plan.Step `json:"plan"`
	HeightUnstable bool        `json:"height_unstable,omitempty"`
	Truncated      bool        `json:"truncated,omitempty"`
}

// Orchestrator runs one page's capture pipeline: strictly sequential, one
// tile at a time, each capture observing the previous scroll's settled state.
type Orchestrator struct {
	opts Options
}

// NewOrchestrator wires a driver, planner and sink together for one page.
func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{opts: opts}
}

func (o *Orchestrator) emit(stage string, tile, offset int, message string) {
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(ProgressEvent{
			URL:     o.opts.URL,
			Stage:   stage,
			Tile:    tile,
			Offset:  offset,
			Message: message,
		})
	}
	if o.opts.Verbose {
		log.Printf("[CAPTURE] %s: %s", o.opts.URL, message)
	}
}

// Run executes the plan. On failure it returns the partial result together
// with an *Error naming the failed stage; tiles already written to the sink
// stay usable. Cancellation is honoured between tiles only: the context is
// consulted before each planned step, never mid-tile.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{URL: o.opts.URL}

	fail := func(stage string, cause error) (*Result, error) {
		return res, &Error{URL: o.opts.URL, Stage: stage, TilesDone: len(res.Tiles), Cause: cause}
	}

	for {
		if err := ctx.Err(); err != nil {
			o.emit("cancelled", 0, 0, "cancelled between tiles")
			return res, err
		}

		step, ok, err := o.opts.Planner.Next(ctx)
		if err != nil {
			return fail("plan", err)
		}
		if !ok {
			break
		}

		settled, err := o.opts.Driver.ScrollTo(ctx, step.Offset)
		if err != nil {
			return fail("scroll", err)
		}
		if err := o.opts.Driver.Settle(ctx); err != nil {
			// Settle timeouts are soft: the page may simply have no
			// pending activity left to report.
			log.Printf("[warn] %s: settle after scroll to %d: %v", o.opts.URL, step.Offset, err)
		}
		if settled != step.HeightAtDecision {
			log.Printf("[warn] %s: settled height %d drifted from planned %d at offset %d",
				o.opts.URL, settled, step.HeightAtDecision, step.Offset)
		}

		data, err := o.opts.Driver.CaptureViewport(ctx)
		if err != nil {
			return fail("capture", err)
		}

		tile := Tile{
			Index:         len(res.Tiles) + 1,
			Offset:        step.Offset,
			PlannedHeight: step.HeightAtDecision,
			SettledHeight: settled,
			Data:          data,
			CapturedAt:    time.Now(),
		}
		if err := o.opts.Sink.WriteTile(tile); err != nil {
			return fail("persist", err)
		}

		tile.Data = nil // streamed to the sink, not retained
		res.Tiles = append(res.Tiles, tile)
		res.Plan = append(res.Plan, step)
		o.emit("tile", tile.Index, tile.Offset, "captured tile")
	}

	res.HeightUnstable = o.opts.Planner.HeightUnstable()
	res.Truncated = o.opts.Planner.Truncated()
	if res.HeightUnstable {
		log.Printf("[warn] %s: content height did not stabilize; captured against last measured bound", o.opts.URL)
	}
	if res.Truncated {
		log.Printf("[warn] %s: tile limit reached, capture may be incomplete", o.opts.URL)
	}
	o.emit("done", len(res.Tiles), 0, "capture complete")
	return res, nil
}
