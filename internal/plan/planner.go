// Package plan decides how far to scroll between captures and when to stop.
// The planner is the only place where "how many tiles, and where" is decided.
// It pulls page height from an injected oracle so that tests can script a
// sequence of heights instead of driving a live browser.
package plan

import (
	"context"
	"fmt"

	"github.com/avasile/scrollsnap/internal/geometry"
)

// HeightOracle reports the current scrollable content height of the page.
// In production this is backed by the browser driver; lazy-loading pages may
// report growing heights across calls.
type HeightOracle interface {
	ContentHeight(ctx context.Context) (int, error)
}

// Step is one planned capture: the scroll offset to capture at and the
// bounded content height known when the decision was made. The orchestrator
// compares HeightAtDecision against the settled height it observes at capture
// time to detect drift.
type Step struct {
	Offset           int `json:"offset"`
	HeightAtDecision int `json:"height_at_decision"`
}

// DefaultMaxRechecks bounds how many consecutive growing height measurements
// are tolerated before the plan freezes on the last bound.
const DefaultMaxRechecks = 10

// DefaultMaxTiles is the runaway guard for pages whose height never settles.
const DefaultMaxTiles = 150

// Options configures a Planner.
type Options struct {
	ViewportHeight int
	Overlap        int
	CapHeight      int // 0 disables the cap
	MaxRechecks    int // 0 uses DefaultMaxRechecks
	MaxTiles       int // 0 uses DefaultMaxTiles
}

// Planner produces the ordered sequence of scroll offsets for one page.
// Offsets are strictly increasing; the final offset is clamped so the last
// tile is aligned to the bottom of the bounded content.
type Planner struct {
	step        int
	viewport    int
	capHeight   int
	maxRechecks int
	maxTiles    int
	oracle      HeightOracle

	started    bool
	done       bool
	stable     bool
	unstable   bool
	truncated  bool
	rechecks   int
	lastHeight int
	bounded    int
	lastOffset int
	emitted    int
}

// New validates the geometry eagerly and returns a planner. Invalid
// overlap/viewport/cap combinations fail here, before any capture begins.
func New(opts Options, oracle HeightOracle) (*Planner, error) {
	step, err := geometry.EffectiveStep(opts.ViewportHeight, opts.Overlap)
	if err != nil {
		return nil, err
	}
	if opts.CapHeight < 0 {
		return nil, &geometry.ConfigError{Message: fmt.Sprintf("cap height must be non-negative, got %d", opts.CapHeight)}
	}
	if oracle == nil {
		return nil, &geometry.ConfigError{Message: "height oracle is required"}
	}
	maxRechecks := opts.MaxRechecks
	if maxRechecks <= 0 {
		maxRechecks = DefaultMaxRechecks
	}
	maxTiles := opts.MaxTiles
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}
	return &Planner{
		step:        step,
		viewport:    opts.ViewportHeight,
		capHeight:   opts.CapHeight,
		maxRechecks: maxRechecks,
		maxTiles:    maxTiles,
		oracle:      oracle,
	}, nil
}

// Next returns the next planned capture, or ok=false when the plan is
// exhausted. The caller is expected to scroll to the returned offset and let
// the page settle before calling Next again, so the height re-check observes
// any lazy-loaded content.
func (p *Planner) Next(ctx context.Context) (Step, bool, error) {
	if p.done {
		return Step{}, false, nil
	}

	if !p.started {
		h, err := p.oracle.ContentHeight(ctx)
		if err != nil {
			return Step{}, false, fmt.Errorf("measure content height: %w", err)
		}
		p.started = true
		p.lastHeight = h
		p.bounded = geometry.BoundedHeight(h, p.capHeight)
		return p.emit(0), true, nil
	}

	if err := p.recheckHeight(ctx); err != nil {
		return Step{}, false, err
	}

	if p.emitted >= p.maxTiles {
		p.truncated = true
		p.done = true
		return Step{}, false, nil
	}

	next := p.lastOffset + p.step
	if next+p.viewport < p.bounded {
		return p.emit(next), true, nil
	}

	// Bottom is reachable: clamp the final tile so its lower edge lands
	// exactly on the bounded content end. If the previous tile already
	// covers the bottom there is nothing left to capture.
	final := p.bounded - p.viewport
	if final > p.lastOffset {
		p.done = true
		return p.emit(final), true, nil
	}
	p.done = true
	return Step{}, false, nil
}

// recheckHeight re-queries the oracle until the height stops growing once,
// then freezes the bound. A page that keeps growing past maxRechecks is
// frozen on the last measurement; HeightUnstable reports that condition so
// the caller can log it.
func (p *Planner) recheckHeight(ctx context.Context) error {
	if p.stable {
		return nil
	}
	h, err := p.oracle.ContentHeight(ctx)
	if err != nil {
		return fmt.Errorf("re-measure content height: %w", err)
	}
	p.rechecks++
	if h <= p.lastHeight {
		// No growth (shrinkage included) counts as stable.
		p.stable = true
	} else if p.rechecks >= p.maxRechecks {
		p.stable = true
		p.unstable = true
	}
	p.lastHeight = h
	p.bounded = geometry.BoundedHeight(h, p.capHeight)
	return nil
}

func (p *Planner) emit(offset int) Step {
	p.lastOffset = offset
	p.emitted++
	if p.bounded <= p.viewport {
		p.done = true
	}
	return Step{Offset: offset, HeightAtDecision: p.bounded}
}

// Plan drains the planner into a complete offset sequence. With a fixed
// oracle this is deterministic and suitable for pre-computing the whole plan.
func (p *Planner) Plan(ctx context.Context) ([]Step, error) {
	var steps []Step
	for {
		st, ok, err := p.Next(ctx)
		if err != nil {
			return steps, err
		}
		if !ok {
			return steps, nil
		}
		steps = append(steps, st)
	}
}

// BoundedHeight returns the bound the planner is currently working against.
func (p *Planner) BoundedHeight() int { return p.bounded }

// HeightUnstable reports whether the page height kept growing past the
// re-check budget. This is a soft condition, not an error.
func (p *Planner) HeightUnstable() bool { return p.unstable }

// Truncated reports whether the runaway tile guard cut the plan short.
func (p *Planner) Truncated() bool { return p.truncated }
