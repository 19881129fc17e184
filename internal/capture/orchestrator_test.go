package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/avasile/scrollsnap/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver simulates a settled page of fixed height.
type fakeDriver struct {
	height     int
	scrolls    []int
	captures   int
	failAt     int // capture number that fails, 0 = never
	settleErr  error
	captureErr error
}

func (d *fakeDriver) ScrollTo(_ context.Context, offset int) (int, error) {
	d.scrolls = append(d.scrolls, offset)
	return d.height, nil
}

func (d *fakeDriver) Settle(_ context.Context) error { return d.settleErr }

func (d *fakeDriver) CaptureViewport(_ context.Context) ([]byte, error) {
	d.captures++
	if d.failAt > 0 && d.captures >= d.failAt {
		if d.captureErr == nil {
			d.captureErr = errors.New("target crashed")
		}
		return nil, d.captureErr
	}
	return []byte{0x89, 'P', 'N', 'G', byte(d.captures)}, nil
}

func (d *fakeDriver) ContentHeight(_ context.Context) (int, error) { return d.height, nil }

// recordingSink keeps every tile it receives and can inject failures or
// side effects per write.
type recordingSink struct {
	tiles   []Tile
	failAt  int
	onWrite func(Tile)
}

func (s *recordingSink) WriteTile(t Tile) error {
	if s.failAt > 0 && t.Index >= s.failAt {
		return errors.New("disk full")
	}
	s.tiles = append(s.tiles, t)
	if s.onWrite != nil {
		s.onWrite(t)
	}
	return nil
}

func newTestPlanner(t *testing.T, d Driver, viewport, overlap int) *plan.Planner {
	t.Helper()
	p, err := plan.New(plan.Options{ViewportHeight: viewport, Overlap: overlap}, d)
	require.NoError(t, err)
	return p
}

func TestRun_CapturesWholePlan(t *testing.T) {
	driver := &fakeDriver{height: 3000}
	sink := &recordingSink{}
	var events []ProgressEvent

	o := NewOrchestrator(Options{
		URL:        "https://example.com",
		Driver:     driver,
		Planner:    newTestPlanner(t, driver, 1000, 0),
		Sink:       sink,
		OnProgress: func(ev ProgressEvent) { events = append(events, ev) },
	})

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Tiles, 3)
	assert.Equal(t, []int{0, 1000, 2000}, driver.scrolls)
	for i, tile := range res.Tiles {
		assert.Equal(t, i+1, tile.Index, "indices are 1-based, sequential, gap-free")
		assert.Nil(t, tile.Data, "tile data is streamed to the sink, not retained")
	}

	// The sink saw every tile with its raw bytes, in capture order.
	require.Len(t, sink.tiles, 3)
	for i, tile := range sink.tiles {
		assert.Equal(t, i+1, tile.Index)
		assert.NotEmpty(t, tile.Data)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, "done", events[len(events)-1].Stage)
}

func TestRun_CaptureFailureKeepsEarlierTiles(t *testing.T) {
	driver := &fakeDriver{height: 3000, failAt: 2}
	sink := &recordingSink{}

	o := NewOrchestrator(Options{
		URL:     "https://example.com",
		Driver:  driver,
		Planner: newTestPlanner(t, driver, 1000, 0),
		Sink:    sink,
	})

	res, err := o.Run(context.Background())
	require.Error(t, err)

	var capErr *Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "capture", capErr.Stage)
	assert.Equal(t, 1, capErr.TilesDone)

	assert.Len(t, res.Tiles, 1)
	assert.Len(t, sink.tiles, 1, "tiles captured before the failure stay persisted")
}

func TestRun_PersistFailure(t *testing.T) {
	driver := &fakeDriver{height: 3000}
	sink := &recordingSink{failAt: 3}

	o := NewOrchestrator(Options{
		URL:     "https://example.com",
		Driver:  driver,
		Planner: newTestPlanner(t, driver, 1000, 0),
		Sink:    sink,
	})

	_, err := o.Run(context.Background())
	require.Error(t, err)

	var capErr *Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "persist", capErr.Stage)
	assert.Equal(t, 2, capErr.TilesDone)
}

func TestRun_CancelledBetweenTiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	driver := &fakeDriver{height: 5000}
	sink := &recordingSink{}
	sink.onWrite = func(t Tile) {
		if t.Index == 2 {
			cancel()
		}
	}

	o := NewOrchestrator(Options{
		URL:     "https://example.com",
		Driver:  driver,
		Planner: newTestPlanner(t, driver, 1000, 0),
		Sink:    sink,
	})

	res, err := o.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Tiles, 2, "already-captured tiles remain intact")
}

func TestRun_SettleErrorIsSoft(t *testing.T) {
	driver := &fakeDriver{height: 2000, settleErr: errors.New("network idle timeout")}
	sink := &recordingSink{}

	o := NewOrchestrator(Options{
		URL:     "https://example.com",
		Driver:  driver,
		Planner: newTestPlanner(t, driver, 1000, 0),
		Sink:    sink,
	})

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Tiles, 2)
}

func TestRun_SingleTilePage(t *testing.T) {
	driver := &fakeDriver{height: 420}
	sink := &recordingSink{}

	o := NewOrchestrator(Options{
		URL:     "https://example.com",
		Driver:  driver,
		Planner: newTestPlanner(t, driver, 1000, 80),
		Sink:    sink,
	})

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Tiles, 1)
	assert.Equal(t, 1, res.Tiles[0].Index)
	assert.Equal(t, 0, res.Tiles[0].Offset)
}
