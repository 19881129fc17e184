package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/avasile/scrollsnap/internal/browser"
	"github.com/avasile/scrollsnap/internal/capture"
	"github.com/avasile/scrollsnap/internal/config"
	"github.com/avasile/scrollsnap/internal/plan"
	"github.com/avasile/scrollsnap/internal/session"
	"github.com/avasile/scrollsnap/internal/stitch"
)

// capturePage runs the full pipeline for one URL: navigate, plan, capture,
// record metadata, and optionally stitch. Capture and stitch failures are
// isolated to this URL.
func capturePage(ctx context.Context, b *browser.Browser, sess *session.Session, cfg *config.Config, wait browser.Strategy, cookies []browser.Cookie, url string) error {
	page, err := b.NewPage()
	if err != nil {
		return &capture.Error{URL: url, Stage: "navigate", Cause: err}
	}
	defer page.Close()

	if err := page.SetViewport(ctx, cfg.Viewport()); err != nil {
		return &capture.Error{URL: url, Stage: "navigate", Cause: err}
	}
	if len(cookies) > 0 {
		if err := page.SetCookies(ctx, cookies); err != nil {
			log.Printf("[warn] %s: %v", url, err)
		}
	}
	if err := page.Navigate(ctx, url); err != nil {
		return &capture.Error{URL: url, Stage: "navigate", Cause: err}
	}
	if err := page.ApplyZoom(ctx, cfg.Scale); err != nil {
		log.Printf("[warn] %s: %v", url, err)
	}

	planner, err := plan.New(plan.Options{
		ViewportHeight: cfg.Height,
		Overlap:        cfg.TileOverlap,
		CapHeight:      cfg.CapHeight,
		MaxTiles:       cfg.MaxTiles,
		MaxRechecks:    cfg.MaxRechecks,
	}, page)
	if err != nil {
		return err
	}

	writer, err := sess.NewPageWriter(url)
	if err != nil {
		return &capture.Error{URL: url, Stage: "persist", Cause: err}
	}

	orch := capture.NewOrchestrator(capture.Options{
		URL:        url,
		Driver:     page,
		Planner:    planner,
		Sink:       writer,
		Verbose:    cfg.Verbose,
		OnProgress: printProgress,
	})
	res, runErr := orch.Run(ctx)

	// Metadata is written even for partial runs so the tiles on disk stay
	// interpretable.
	info, infoErr := page.Info(ctx)
	if infoErr != nil && cfg.Verbose {
		log.Printf("[warn] %s: page info: %v", url, infoErr)
	}
	spec := stitch.Spec{Overlap: cfg.TileOverlap, StickyTop: cfg.StickyTop, StickyBottom: cfg.StickyBottom}
	meta := session.PageMeta{
		Title:          info.Title,
		Description:    info.Description,
		Viewport:       cfg.Viewport(),
		Wait:           wait.String(),
		TotalHeight:    planner.BoundedHeight(),
		Plan:           res.Plan,
		Stitch:         &spec,
		HeightUnstable: planner.HeightUnstable(),
		Truncated:      planner.Truncated(),
	}
	if err := writer.WritePageMeta(meta); err != nil {
		log.Printf("[warn] %s: %v", url, err)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			// Keep the tile count visible in the end-of-run report.
			return &capture.Error{URL: url, Stage: "cancelled", TilesDone: len(res.Tiles), Cause: runErr}
		}
		// A partial tile set is still stitchable.
		if cfg.Stitch && len(writer.TilePaths()) > 0 {
			if err := stitchPage(writer, cfg, spec); err != nil {
				log.Printf("[warn] %s: stitching partial tiles: %v", url, err)
			}
		}
		return runErr
	}

	if cfg.Stitch {
		if err := stitchPage(writer, cfg, spec); err != nil {
			return err
		}
		fmt.Printf("[ok] stitched -> %s\n", writer.StitchedPath())
	}
	return nil
}

// stitchPage composes a page's persisted tiles. The memory check is advisory
// and only logs.
func stitchPage(w *session.PageWriter, cfg *config.Config, spec stitch.Spec) error {
	paths := w.TilePaths()
	heights := make([]int, len(paths))
	for i := range heights {
		heights[i] = cfg.Height
	}
	if total, err := stitch.Height(heights, spec); err == nil {
		if warn := stitch.MemoryWarning(cfg.Width, total); warn != "" {
			log.Printf("[warn] %s", warn)
		}
	}
	return stitch.ComposeFiles(paths, w.StitchedPath(), spec)
}

// printProgress is the default per-tile reporter.
func printProgress(ev capture.ProgressEvent) {
	switch ev.Stage {
	case "tile":
		fmt.Printf("  tile %d captured at offset %d\n", ev.Tile, ev.Offset)
	case "done":
		fmt.Printf("  %d tiles captured\n", ev.Tile)
	}
}
