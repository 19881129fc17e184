// Package geometry provides the pure scroll arithmetic shared by the planner
// and the stitcher: viewport bounds, effective step size, and capped content
// height. It has no side effects and no dependencies on the browser layer.
package geometry

import "fmt"

// Viewport describes the capture viewport for one session. It is fixed before
// the first tile is captured and never changes afterwards.
type Viewport struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
	Mobile bool    `json:"mobile,omitempty"`
}

// ConfigError represents an invalid viewport/overlap/cap combination.
// It is always raised before any capture begins.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Validate checks the viewport dimensions and scale.
func (v Viewport) Validate() error {
	if v.Width <= 0 {
		return &ConfigError{Message: fmt.Sprintf("viewport width must be positive, got %d", v.Width)}
	}
	if v.Height <= 0 {
		return &ConfigError{Message: fmt.Sprintf("viewport height must be positive, got %d", v.Height)}
	}
	if v.Scale <= 0 {
		return &ConfigError{Message: fmt.Sprintf("zoom scale must be positive, got %g", v.Scale)}
	}
	return nil
}

// EffectiveStep returns the vertical distance scrolled between consecutive
// tiles. An overlap equal to or larger than the viewport height would make
// the scroll loop stall or walk backwards, so it is rejected outright rather
// than clamped.
func EffectiveStep(viewportHeight, overlap int) (int, error) {
	if viewportHeight <= 0 {
		return 0, &ConfigError{Message: fmt.Sprintf("viewport height must be positive, got %d", viewportHeight)}
	}
	if overlap < 0 {
		return 0, &ConfigError{Message: fmt.Sprintf("tile overlap must be non-negative, got %d", overlap)}
	}
	if overlap >= viewportHeight {
		return 0, &ConfigError{Message: fmt.Sprintf("tile overlap %d must be smaller than viewport height %d", overlap, viewportHeight)}
	}
	step := viewportHeight - overlap
	if step < 1 {
		step = 1
	}
	return step, nil
}

// BoundedHeight caps the measured content height at capHeight. A capHeight of
// zero means no cap.
func BoundedHeight(measured, capHeight int) int {
	if capHeight > 0 && measured > capHeight {
		return capHeight
	}
	return measured
}
