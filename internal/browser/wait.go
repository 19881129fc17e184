package browser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// WaitKind selects how the session blocks after navigation and after each
// scroll.
type WaitKind string

const (
	// WaitNetworkIdle blocks until no network activity has been observed
	// for a short quiet window. Best for lazy-loading pages.
	WaitNetworkIdle WaitKind = "networkidle"
	// WaitLoad relies on the load event only.
	WaitLoad WaitKind = "load"
	// WaitDOM waits for the DOM to be ready.
	WaitDOM WaitKind = "dom"
	// WaitDelay blocks for a literal duration.
	WaitDelay WaitKind = "delay"
)

// Strategy is the wait configuration selected once per session and applied
// identically after every scroll.
type Strategy struct {
	Kind  WaitKind
	Delay time.Duration
}

func (s Strategy) String() string {
	if s.Kind == WaitDelay {
		return fmt.Sprintf("%gs", s.Delay.Seconds())
	}
	return string(s.Kind)
}

var delayRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)s$`)

// ParseStrategy parses the wait grammar: networkidle | load | dom | <seconds>s.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", string(WaitNetworkIdle):
		return Strategy{Kind: WaitNetworkIdle}, nil
	case string(WaitLoad):
		return Strategy{Kind: WaitLoad}, nil
	case string(WaitDOM):
		return Strategy{Kind: WaitDOM}, nil
	}
	if m := delayRe.FindStringSubmatch(s); m != nil {
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Strategy{}, fmt.Errorf("invalid wait duration %q: %w", s, err)
		}
		return Strategy{Kind: WaitDelay, Delay: time.Duration(secs * float64(time.Second))}, nil
	}
	return Strategy{}, fmt.Errorf("invalid wait strategy %q: want networkidle, load, dom, or <seconds>s", s)
}

const (
	defaultIdleQuiet   = 500 * time.Millisecond
	defaultIdleTimeout = 5 * time.Second
)

// waitNetworkIdle blocks until no request has been in flight for the quiet
// window, or the timeout elapses. It counts requests via CDP network events
// on this page's target.
func (p *Page) waitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var mu sync.Mutex
	inflight := make(map[network.RequestID]struct{})
	idle := time.NewTimer(quiet)
	defer idle.Stop()

	lctx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	chromedp.ListenTarget(lctx, func(ev interface{}) {
		mu.Lock()
		defer mu.Unlock()
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			inflight[e.RequestID] = struct{}{}
			idle.Stop()
		case *network.EventLoadingFinished:
			delete(inflight, e.RequestID)
			if len(inflight) == 0 {
				idle.Reset(quiet)
			}
		case *network.EventLoadingFailed:
			delete(inflight, e.RequestID)
			if len(inflight) == 0 {
				idle.Reset(quiet)
			}
		}
	})

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-idle.C:
		return nil
	case <-deadline.C:
		return fmt.Errorf("network idle not reached within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}
