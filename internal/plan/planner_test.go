package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/avasile/scrollsnap/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedOracle replays a fixed sequence of heights, repeating the last one
// once the script is exhausted.
type scriptedOracle struct {
	heights []int
	calls   int
}

func (o *scriptedOracle) ContentHeight(_ context.Context) (int, error) {
	i := o.calls
	if i >= len(o.heights) {
		i = len(o.heights) - 1
	}
	o.calls++
	return o.heights[i], nil
}

func fixedOracle(h int) *scriptedOracle { return &scriptedOracle{heights: []int{h}} }

func offsets(steps []Step) []int {
	out := make([]int, len(steps))
	for i, s := range steps {
		out[i] = s.Offset
	}
	return out
}

func TestPlan_ZeroOverlap(t *testing.T) {
	p, err := New(Options{ViewportHeight: 1000}, fixedOracle(3000))
	require.NoError(t, err)

	steps, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1000, 2000}, offsets(steps))
	assert.False(t, p.HeightUnstable())
}

func TestPlan_FinalTileClamp(t *testing.T) {
	p, err := New(Options{ViewportHeight: 1000, Overlap: 80}, fixedOracle(2500))
	require.NoError(t, err)

	steps, err := p.Plan(context.Background())
	require.NoError(t, err)
	// Regular advance is 920; the last offset is clamped so the final tile's
	// bottom edge lands exactly on the content end.
	assert.Equal(t, []int{0, 920, 1500}, offsets(steps))
	last := steps[len(steps)-1]
	assert.Equal(t, 2500, last.Offset+1000)
}

func TestPlan_ContentShorterThanViewport(t *testing.T) {
	p, err := New(Options{ViewportHeight: 1000}, fixedOracle(600))
	require.NoError(t, err)

	steps, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0}, offsets(steps))
}

func TestPlan_CapEnforcement(t *testing.T) {
	p, err := New(Options{ViewportHeight: 1000, CapHeight: 5000}, fixedOracle(100000))
	require.NoError(t, err)

	steps, err := p.Plan(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	last := steps[len(steps)-1]
	assert.Equal(t, 5000, last.Offset+1000)
	for _, s := range steps {
		assert.LessOrEqual(t, s.HeightAtDecision, 5000)
	}
}

func TestPlan_LazyLoadGrowth(t *testing.T) {
	// Height grows once after the first scroll, then settles.
	p, err := New(Options{ViewportHeight: 1000}, &scriptedOracle{heights: []int{2000, 3000, 3000}})
	require.NoError(t, err)

	steps, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1000, 2000}, offsets(steps))
	assert.False(t, p.HeightUnstable())
}

func TestPlan_HeightNeverStabilizes(t *testing.T) {
	// Grows faster than the scroll advances, so the bottom stays out of
	// reach until the re-check budget freezes the bound.
	heights := make([]int, 40)
	for i := range heights {
		heights[i] = 2000 + i*1500
	}
	p, err := New(Options{ViewportHeight: 1000, MaxRechecks: 3}, &scriptedOracle{heights: heights})
	require.NoError(t, err)

	steps, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.True(t, p.HeightUnstable())
	// Plan still terminates and is bottom-aligned against the frozen bound.
	last := steps[len(steps)-1]
	assert.Equal(t, p.BoundedHeight(), last.Offset+1000)
}

func TestPlan_ShrinkageCountsAsStable(t *testing.T) {
	p, err := New(Options{ViewportHeight: 1000}, &scriptedOracle{heights: []int{4000, 3500, 3500}})
	require.NoError(t, err)

	steps, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.False(t, p.HeightUnstable())
	last := steps[len(steps)-1]
	assert.Equal(t, 3500, last.Offset+1000)
}

func TestPlan_RunawayGuard(t *testing.T) {
	p, err := New(Options{ViewportHeight: 1000, MaxTiles: 5}, fixedOracle(1_000_000))
	require.NoError(t, err)

	steps, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.Len(t, steps, 5)
	assert.True(t, p.Truncated())
}

func TestPlan_Idempotent(t *testing.T) {
	opts := Options{ViewportHeight: 1000, Overlap: 80, CapHeight: 50000}

	p1, err := New(opts, fixedOracle(12345))
	require.NoError(t, err)
	p2, err := New(opts, fixedOracle(12345))
	require.NoError(t, err)

	steps1, err := p1.Plan(context.Background())
	require.NoError(t, err)
	steps2, err := p2.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, steps1, steps2)
}

func TestPlan_OffsetInvariants(t *testing.T) {
	cases := []struct {
		viewport, overlap, content, capHeight int
	}{
		{1000, 0, 3000, 0},
		{1000, 80, 2500, 0},
		{1000, 80, 999, 0},
		{1000, 900, 5000, 0},
		{1000, 0, 100000, 5000},
		{768, 100, 7331, 0},
	}

	for _, tc := range cases {
		p, err := New(Options{
			ViewportHeight: tc.viewport,
			Overlap:        tc.overlap,
			CapHeight:      tc.capHeight,
		}, fixedOracle(tc.content))
		require.NoError(t, err)

		steps, err := p.Plan(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, steps)

		bounded := geometry.BoundedHeight(tc.content, tc.capHeight)
		prev := -1
		for _, s := range steps {
			assert.Greater(t, s.Offset, prev, "offsets must be strictly increasing")
			assert.GreaterOrEqual(t, s.Offset, 0)
			if bounded > tc.viewport {
				assert.LessOrEqual(t, s.Offset, bounded-tc.viewport)
			}
			prev = s.Offset
		}
		if bounded > tc.viewport {
			last := steps[len(steps)-1]
			assert.Equal(t, bounded, last.Offset+tc.viewport)
		}
	}
}

func TestNew_InvalidGeometry(t *testing.T) {
	_, err := New(Options{ViewportHeight: 1000, Overlap: 1000}, fixedOracle(3000))
	require.Error(t, err)
	var cfgErr *geometry.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = New(Options{ViewportHeight: 1000, CapHeight: -1}, fixedOracle(3000))
	require.Error(t, err)

	_, err = New(Options{ViewportHeight: 1000}, nil)
	require.Error(t, err)
}

type failingOracle struct{ err error }

func (o *failingOracle) ContentHeight(_ context.Context) (int, error) { return 0, o.err }

func TestPlan_OracleError(t *testing.T) {
	boom := errors.New("page went away")
	p, err := New(Options{ViewportHeight: 1000}, &failingOracle{err: boom})
	require.NoError(t, err)

	_, _, err = p.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
