// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/avasile/scrollsnap/internal/geometry"
)

// Config represents the capture configuration. It can be loaded from a JSON
// file; missing values fall back to defaults, and CLI flags win over both.
type Config struct {
	// Output
	Out    string `json:"out,omitempty"`    // Output root directory
	Stitch bool   `json:"stitch,omitempty"` // Compose tiles into one long image

	// Viewport
	Width  int     `json:"width,omitempty" validate:"omitempty,gt=0"`
	Height int     `json:"height,omitempty" validate:"omitempty,gt=0"`
	Scale  float64 `json:"scale,omitempty" validate:"omitempty,gt=0"`
	Mobile bool    `json:"mobile,omitempty"`

	// Scroll plan
	TileOverlap int `json:"tile_overlap,omitempty" validate:"gte=0"`
	CapHeight   int `json:"cap_height,omitempty" validate:"gte=0"`
	MaxTiles    int `json:"max_tiles,omitempty" validate:"gte=0"`
	MaxRechecks int `json:"max_rechecks,omitempty" validate:"gte=0"`

	// Stitch crops
	StickyTop    int `json:"sticky_top,omitempty" validate:"gte=0"`
	StickyBottom int `json:"sticky_bottom,omitempty" validate:"gte=0"`

	// Waiting
	Wait          string `json:"wait,omitempty"` // networkidle|load|dom|<seconds>s
	ScrollDelayMS int    `json:"scroll_delay_ms,omitempty" validate:"gte=0"`

	// Browser
	Cookies     string `json:"cookies,omitempty"`       // Path to exported cookies.json
	UserDataDir string `json:"user_data_dir,omitempty"` // Persistent Chromium profile
	Headed      bool   `json:"headed,omitempty"`        // Run with a visible browser window

	// Behavior
	Parallel int  `json:"parallel,omitempty" validate:"gte=1"` // Concurrent URL sessions
	Verbose  bool `json:"verbose,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Out:           "out",
		Width:         1280,
		Height:        1000,
		Scale:         1.0,
		TileOverlap:   80,
		CapHeight:     50000,
		Wait:          "networkidle",
		ScrollDelayMS: 350,
		Parallel:      1,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration eagerly, before any capture begins.
// Geometry violations surface as *geometry.ConfigError.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if _, err := geometry.EffectiveStep(c.Height, c.TileOverlap); err != nil {
		return err
	}
	if c.StickyTop+c.StickyBottom >= c.Height {
		return &geometry.ConfigError{
			Message: fmt.Sprintf("sticky crops %d+%d must total less than tile height %d",
				c.StickyTop, c.StickyBottom, c.Height),
		}
	}

	if c.Cookies != "" {
		if _, err := os.Stat(c.Cookies); os.IsNotExist(err) {
			return fmt.Errorf("config error: cookie file not found: %s", c.Cookies)
		}
	}

	return nil
}

// Viewport returns the viewport this configuration describes.
func (c *Config) Viewport() geometry.Viewport {
	return geometry.Viewport{Width: c.Width, Height: c.Height, Scale: c.Scale, Mobile: c.Mobile}
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. Bools cannot distinguish unset from false, so they are not
// merged; CLI flags always win for bools.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Out == "" {
		result.Out = defaults.Out
	}
	if result.Wait == "" {
		result.Wait = defaults.Wait
	}
	if result.Cookies == "" {
		result.Cookies = defaults.Cookies
	}
	if result.UserDataDir == "" {
		result.UserDataDir = defaults.UserDataDir
	}

	if result.Width == 0 {
		result.Width = defaults.Width
	}
	if result.Height == 0 {
		result.Height = defaults.Height
	}
	if result.Scale == 0 {
		result.Scale = defaults.Scale
	}
	if result.TileOverlap == 0 {
		result.TileOverlap = defaults.TileOverlap
	}
	if result.CapHeight == 0 {
		result.CapHeight = defaults.CapHeight
	}
	if result.MaxTiles == 0 {
		result.MaxTiles = defaults.MaxTiles
	}
	if result.MaxRechecks == 0 {
		result.MaxRechecks = defaults.MaxRechecks
	}
	if result.StickyTop == 0 {
		result.StickyTop = defaults.StickyTop
	}
	if result.StickyBottom == 0 {
		result.StickyBottom = defaults.StickyBottom
	}
	if result.ScrollDelayMS == 0 {
		result.ScrollDelayMS = defaults.ScrollDelayMS
	}
	if result.Parallel == 0 {
		result.Parallel = defaults.Parallel
	}

	return result
}
