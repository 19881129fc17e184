// Package browser implements the scroll-driver contract on top of a
// headless Chrome via chromedp: viewport emulation, navigation, scrolling,
// height measurement, and viewport screenshots. Requires Chrome/Chromium to
// be installed on the system.
package browser

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/avasile/scrollsnap/internal/geometry"
)

// Options configures the browser process and every page opened from it.
type Options struct {
	Headless    bool
	UserDataDir string // persistent profile for logged-in sessions
	Wait        Strategy
	ScrollDelay time.Duration // extra settle time after each scroll
	Verbose     bool
}

// Browser owns one Chrome process. Pages opened from it share the process
// but hold independent targets, so concurrent page sessions do not share
// scroll state.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
}

// New launches the browser process.
func New(parent context.Context, opts Options) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the process eagerly so launch failures surface here rather
	// than on the first page operation.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	return &Browser{ctx: ctx, cancel: cancel, allocCancel: allocCancel, opts: opts}, nil
}

// Close shuts the browser process down.
func (b *Browser) Close() {
	b.cancel()
	b.allocCancel()
}

// Page is one browser target. It implements the orchestrator's Driver
// contract and the planner's height oracle.
type Page struct {
	ctx         context.Context
	cancel      context.CancelFunc
	wait        Strategy
	scrollDelay time.Duration
	verbose     bool
}

// NewPage opens a fresh target with network event tracking enabled, which
// the network-idle wait strategy depends on.
func (b *Browser) NewPage() (*Page, error) {
	ctx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	return &Page{
		ctx:         ctx,
		cancel:      cancel,
		wait:        b.opts.Wait,
		scrollDelay: b.opts.ScrollDelay,
		verbose:     b.opts.Verbose,
	}, nil
}

// Close closes the target.
func (p *Page) Close() { p.cancel() }

// run executes chromedp actions on this page with a deadline, honouring the
// caller's cancellation between operations.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

// SetViewport applies the capture viewport. The device scale factor stays at
// 1 regardless of the zoom scale: scale emulation is done with CSS zoom
// after navigation, so tile pixels map 1:1 to CSS pixels.
func (p *Page) SetViewport(ctx context.Context, vp geometry.Viewport) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	err := p.run(ctx, 10*time.Second,
		emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1.0, vp.Mobile),
		emulation.SetTouchEmulationEnabled(vp.Mobile),
	)
	if err != nil {
		return fmt.Errorf("browser: set viewport: %w", err)
	}
	return nil
}

// Navigate loads the URL and blocks per the configured wait strategy.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.verbose {
		log.Printf("[BROWSER] navigating to %s", url)
	}
	if err := p.run(ctx, 90*time.Second, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	switch p.wait.Kind {
	case WaitDOM:
		if err := p.run(ctx, 30*time.Second, chromedp.WaitReady("body")); err != nil {
			return fmt.Errorf("browser: wait for body: %w", err)
		}
	case WaitNetworkIdle:
		if err := p.waitNetworkIdle(ctx, defaultIdleQuiet, defaultIdleTimeout); err != nil {
			log.Printf("[warn] timeout waiting for network idle on %s, continuing", url)
		}
	case WaitDelay:
		p.sleep(ctx, p.wait.Delay)
	}
	return nil
}

// ApplyZoom injects a CSS zoom on the document body. A scale of 1 is a
// no-op.
func (p *Page) ApplyZoom(ctx context.Context, scale float64) error {
	if scale == 1.0 {
		return nil
	}
	js := fmt.Sprintf(`document.body.style.zoom = '%g';`, scale)
	if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("browser: apply zoom: %w", err)
	}
	return nil
}

const heightJS = `Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)`

// ContentHeight reports the page's current scrollable height. Lazy-loading
// pages may report growing values across calls.
func (p *Page) ContentHeight(ctx context.Context) (int, error) {
	var h int
	if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(heightJS, &h)); err != nil {
		return 0, fmt.Errorf("browser: measure content height: %w", err)
	}
	return h, nil
}

// ScrollTo moves the window to the given vertical offset and returns the
// content height observed after the scroll.
func (p *Page) ScrollTo(ctx context.Context, offset int) (int, error) {
	js := fmt.Sprintf(`window.scrollTo(0, %d);`, offset)
	if err := p.run(ctx, 10*time.Second, chromedp.Evaluate(js, nil)); err != nil {
		return 0, fmt.Errorf("browser: scroll to %d: %w", offset, err)
	}
	return p.ContentHeight(ctx)
}

// Settle applies the configured wait strategy after a scroll, then the fixed
// scroll delay. A network-idle timeout is returned as an error so the caller
// can log it; it is not fatal.
func (p *Page) Settle(ctx context.Context) error {
	var err error
	switch p.wait.Kind {
	case WaitNetworkIdle:
		err = p.waitNetworkIdle(ctx, defaultIdleQuiet, defaultIdleTimeout)
	case WaitDelay:
		p.sleep(ctx, p.wait.Delay)
	}
	p.sleep(ctx, p.scrollDelay)
	return err
}

// CaptureViewport takes a PNG screenshot of the current viewport.
func (p *Page) CaptureViewport(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, 30*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("browser: capture viewport: %w", err)
	}
	return buf, nil
}

func (p *Page) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-p.ctx.Done():
	}
}
