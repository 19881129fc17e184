package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/avasile/scrollsnap/internal/browser"
	"github.com/avasile/scrollsnap/internal/capture"
	"github.com/avasile/scrollsnap/internal/config"
	"github.com/avasile/scrollsnap/internal/session"
)

var snapCmd = &cobra.Command{
	Use:   "snap URL...",
	Short: "Capture one or more webpages as scroll tiles",
	Long:  "Captures each URL as a sequence of viewport-sized tiles while scrolling, persisting every tile as it is taken. With --stitch the tiles are composed into one long image per URL.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSnap,
}

var (
	snapConfigPath    string
	snapOut           string
	snapStitch        bool
	snapWidth         int
	snapHeight        int
	snapScale         float64
	snapWait          string
	snapScrollDelayMS int
	snapTileOverlap   int
	snapStickyTop     int
	snapStickyBottom  int
	snapCapHeight     int
	snapMaxTiles      int
	snapCookies       string
	snapUserDataDir   string
	snapMobile        bool
	snapHeaded        bool
	snapParallel      int
	snapVerbose       bool
)

func init() {
	f := snapCmd.Flags()
	f.StringVar(&snapConfigPath, "config", "", "Path to a JSON config file")
	f.StringVarP(&snapOut, "out", "o", "out", "Output root directory")
	f.BoolVar(&snapStitch, "stitch", false, "Stitch all tiles into one long image")
	f.IntVar(&snapWidth, "width", 1280, "Viewport width in pixels")
	f.IntVar(&snapHeight, "height", 1000, "Viewport height in pixels (tile height baseline)")
	f.Float64Var(&snapScale, "scale", 1.0, "CSS zoom scale, e.g. 1.0 / 2.0")
	f.StringVar(&snapWait, "wait", "networkidle", "Wait strategy: networkidle|load|dom|<seconds>s")
	f.IntVar(&snapScrollDelayMS, "scroll-delay-ms", 350, "Extra delay after each scroll (ms)")
	f.IntVar(&snapTileOverlap, "tile-overlap", 80, "Overlap pixels between tiles to avoid gaps")
	f.IntVar(&snapStickyTop, "sticky-top", 0, "Pixels to crop from tile tops when stitching (tiles 2..N)")
	f.IntVar(&snapStickyBottom, "sticky-bottom", 0, "Pixels to crop from tile bottoms when stitching (tiles 2..N-1)")
	f.IntVar(&snapCapHeight, "cap-height", 50000, "Max page height to capture")
	f.IntVar(&snapMaxTiles, "max-tiles", 150, "Tile limit per page (runaway guard)")
	f.StringVar(&snapCookies, "cookies", "", "Path to cookies.json (exported format)")
	f.StringVar(&snapUserDataDir, "user-data-dir", "", "Chromium user data dir for persistent login")
	f.BoolVar(&snapMobile, "mobile", false, "Emulate a simple mobile viewport")
	f.BoolVar(&snapHeaded, "headed", false, "Run with a visible browser window")
	f.IntVar(&snapParallel, "parallel", 1, "Number of URLs captured concurrently")
	f.BoolVarP(&snapVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(snapCmd)
}

// resolveSnapConfig layers defaults, the optional config file, and any
// explicitly set flags, in that order.
func resolveSnapConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Defaults()
	if snapConfigPath != "" {
		fileCfg, err := config.LoadConfig(snapConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg.MergeWithDefaults(cfg)
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Out = snapOut
	}
	if flags.Changed("width") {
		cfg.Width = snapWidth
	}
	if flags.Changed("height") {
		cfg.Height = snapHeight
	}
	if flags.Changed("scale") {
		cfg.Scale = snapScale
	}
	if flags.Changed("wait") {
		cfg.Wait = snapWait
	}
	if flags.Changed("scroll-delay-ms") {
		cfg.ScrollDelayMS = snapScrollDelayMS
	}
	if flags.Changed("tile-overlap") {
		cfg.TileOverlap = snapTileOverlap
	}
	if flags.Changed("sticky-top") {
		cfg.StickyTop = snapStickyTop
	}
	if flags.Changed("sticky-bottom") {
		cfg.StickyBottom = snapStickyBottom
	}
	if flags.Changed("cap-height") {
		cfg.CapHeight = snapCapHeight
	}
	if flags.Changed("max-tiles") {
		cfg.MaxTiles = snapMaxTiles
	}
	if flags.Changed("cookies") {
		cfg.Cookies = snapCookies
	}
	if flags.Changed("user-data-dir") {
		cfg.UserDataDir = snapUserDataDir
	}
	if flags.Changed("parallel") {
		cfg.Parallel = snapParallel
	}
	cfg.Stitch = cfg.Stitch || snapStitch
	cfg.Mobile = cfg.Mobile || snapMobile
	cfg.Headed = cfg.Headed || snapHeaded
	cfg.Verbose = cfg.Verbose || snapVerbose

	return &cfg, nil
}

// pageFailure records one URL's outcome for the end-of-run report.
type pageFailure struct {
	url       string
	stage     string
	tiles     int
	cancelled bool
	err       error
}

// classifyFailure maps a per-URL error to its report entry. Cancellation is
// reported as such, not as a stage failure.
func classifyFailure(url string, err error) pageFailure {
	f := pageFailure{url: url, stage: "capture", err: err}
	var capErr *capture.Error
	if errors.As(err, &capErr) {
		f.stage, f.tiles = capErr.Stage, capErr.TilesDone
	}
	f.cancelled = errors.Is(err, context.Canceled)
	return f
}

func runSnap(cmd *cobra.Command, args []string) error {
	cfg, err := resolveSnapConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	wait, err := browser.ParseStrategy(cfg.Wait)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	var cookies []browser.Cookie
	if cfg.Cookies != "" {
		cookies, err = browser.LoadCookieFile(cfg.Cookies)
		if err != nil {
			log.Printf("[warn] failed to load cookies: %v", err)
		}
	}

	sess, err := session.New(cfg.Out, args)
	if err != nil {
		return err
	}

	// Ctrl-C cancels between tiles; already-captured tiles stay on disk.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b, err := browser.New(ctx, browser.Options{
		Headless:    !cfg.Headed,
		UserDataDir: cfg.UserDataDir,
		Wait:        wait,
		ScrollDelay: time.Duration(cfg.ScrollDelayMS) * time.Millisecond,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	var (
		mu       sync.Mutex
		failures []pageFailure
	)

	// URL sessions are independent; one page failing must not cancel the
	// others, so goroutines always return nil and failures are collected.
	g := &errgroup.Group{}
	g.SetLimit(cfg.Parallel)
	for _, url := range args {
		g.Go(func() error {
			fmt.Printf("==> %s\n", url)
			if err := capturePage(ctx, b, sess, cfg, wait, cookies, url); err != nil {
				mu.Lock()
				failures = append(failures, classifyFailure(url, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := sess.Finish(); err != nil {
		return err
	}

	for _, f := range failures {
		if f.cancelled {
			fmt.Fprintf(os.Stderr, "[-] %s cancelled after %d tiles\n", f.url, f.tiles)
			continue
		}
		fmt.Fprintf(os.Stderr, "[-] %s failed at stage %s after %d tiles: %v\n", f.url, f.stage, f.tiles, f.err)
	}
	fmt.Printf("\nDone. Output at: %s\n", sess.Dir)
	if len(failures) == len(args) {
		return fmt.Errorf("all %d URLs failed", len(args))
	}
	return nil
}
