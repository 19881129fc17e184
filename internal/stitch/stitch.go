// Package stitch composes an ordered tile sequence into one continuous
// image. Overlap removal is purely geometric: a fixed band is cropped from
// tile edges that shared content with a neighbour, no pixel-content
// comparison is attempted.
package stitch

import (
	"fmt"
	"image"
	"image/draw"
)

// Spec carries the crop parameters applied at stitch time, plus the overlap
// the plan was built with (recorded in metadata, not used for cropping).
type Spec struct {
	Overlap      int `json:"overlap"`
	StickyTop    int `json:"sticky_top"`
	StickyBottom int `json:"sticky_bottom"`
}

// Error represents a stitch failure. A stitch failure never invalidates the
// captured tiles on disk.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stitch error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("stitch error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// band is the vertical slice of one tile that survives into the output.
type band struct {
	top, height int
}

// bands computes each tile's contribution and validates the whole sequence
// before any pixel work happens.
//
// The first tile contributes its full height (nothing above it to
// deduplicate) and the last tile keeps its bottom (the planner aligned it to
// the true page end). Only middle tiles lose StickyTop rows from the top and
// StickyBottom rows from the bottom. A single tile is passed through
// untouched.
func bands(tiles []image.Image, spec Spec) ([]band, int, error) {
	if len(tiles) == 0 {
		return nil, 0, &Error{Message: "no tiles to stitch"}
	}
	if spec.StickyTop < 0 || spec.StickyBottom < 0 {
		return nil, 0, &Error{Message: fmt.Sprintf("sticky crops must be non-negative, got top=%d bottom=%d", spec.StickyTop, spec.StickyBottom)}
	}

	width := tiles[0].Bounds().Dx()
	out := make([]band, len(tiles))
	total := 0
	for i, tile := range tiles {
		w, h := tile.Bounds().Dx(), tile.Bounds().Dy()
		if w != width {
			return nil, 0, &Error{Message: fmt.Sprintf("tile %d width %d does not match tile 1 width %d", i+1, w, width)}
		}

		b := band{top: 0, height: h}
		if i > 0 {
			b.top = spec.StickyTop
			b.height -= spec.StickyTop
			if i < len(tiles)-1 {
				b.height -= spec.StickyBottom
			}
		}
		if b.height <= 0 {
			return nil, 0, &Error{Message: fmt.Sprintf("crops top=%d bottom=%d leave tile %d (height %d) with no content", spec.StickyTop, spec.StickyBottom, i+1, h)}
		}
		out[i] = b
		total += b.height
	}
	return out, total, nil
}

// Compose stitches the tiles top-to-bottom in index order. Tiles must share
// one width; their cropped bands are written with no gaps and no re-overlap.
func Compose(tiles []image.Image, spec Spec) (*image.RGBA, error) {
	bs, total, err := bands(tiles, spec)
	if err != nil {
		return nil, err
	}

	width := tiles[0].Bounds().Dx()
	canvas := image.NewRGBA(image.Rect(0, 0, width, total))
	y := 0
	for i, tile := range tiles {
		b := bs[i]
		src := tile.Bounds()
		dst := image.Rect(0, y, width, y+b.height)
		draw.Draw(canvas, dst, tile, image.Point{X: src.Min.X, Y: src.Min.Y + b.top}, draw.Src)
		y += b.height
	}
	return canvas, nil
}

// Height returns the composed image height for the given tile heights
// without touching any pixels. It shares validation with Compose.
func Height(tileHeights []int, spec Spec) (int, error) {
	if len(tileHeights) == 0 {
		return 0, &Error{Message: "no tiles to stitch"}
	}
	total := 0
	for i, h := range tileHeights {
		contrib := h
		if i > 0 {
			contrib -= spec.StickyTop
			if i < len(tileHeights)-1 {
				contrib -= spec.StickyBottom
			}
		}
		if contrib <= 0 {
			return 0, &Error{Message: fmt.Sprintf("crops top=%d bottom=%d leave tile %d (height %d) with no content", spec.StickyTop, spec.StickyBottom, i+1, h)}
		}
		total += contrib
	}
	return total, nil
}
