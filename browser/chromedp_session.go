package browser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"

	"github.com/use-agent/pagemd/config"
	"github.com/use-agent/pagemd/models"
)

// cdpTab is one chromedp target. Canceling ctx closes the target.
type cdpTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// chromedpSession drives Chromium through chromedp.
type chromedpSession struct {
	id  string
	cfg config.BrowserConfig

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabs          *tabPool[cdpTab]

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ Session = (*chromedpSession)(nil)

// launchChromedp starts Chromium through an exec allocator.
func launchChromedp(cfg config.BrowserConfig) (*chromedpSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
	)
	if cfg.BrowserBin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.BrowserBin))
	}
	if cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.Proxy))
	}
	if cfg.Stealth {
		opts = append(opts,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("enable-automation", false),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run on a fresh context starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, initError("failed to launch browser", err)
	}

	s := &chromedpSession{
		id:            uuid.NewString(),
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          newTabPool(cfg.MaxTabs, func(t *cdpTab) {
			t.cancel()
		}),
	}
	slog.Info("browser launched",
		"driver", config.DriverChromedp,
		"session", s.id,
		"maxTabs", cfg.MaxTabs,
		"pageLoadTimeout", cfg.PageLoadTimeout,
	)
	return s, nil
}

func (s *chromedpSession) ID() string     { return s.id }
func (s *chromedpSession) Driver() string { return config.DriverChromedp }

// Render runs one navigate-wait-read pass in a pooled tab. It follows the
// same order as the rod driver; readiness is sampled through outerHTML length.
func (s *chromedpSession) Render(ctx context.Context, url string, wait time.Duration) (*Snapshot, error) {
	if s.closed.Load() {
		return nil, categorizeError(ErrClosed, "browser session closed")
	}
	start := time.Now()

	tab, err := s.tabs.acquire(ctx, s.newTab)
	if err != nil {
		return nil, categorizeError(err, "failed to acquire browser tab")
	}
	slog.Debug("tab acquired", "session", s.id, "inUse", s.tabs.inUse(), "maxTabs", s.tabs.size())
	rendered := false
	defer func() { s.releaseTab(tab, rendered) }()

	// runCtx carries the tab's target and ends with the request.
	runCtx, cancel := context.WithCancel(tab.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	snap := &Snapshot{URL: url, FinalURL: url, Completeness: models.ContentComplete}

	navCtx, navCancel := context.WithTimeout(runCtx, s.cfg.PageLoadTimeout)
	navErr := chromedp.Run(navCtx, chromedp.Navigate(url))
	navCancel()

	switch {
	case navErr == nil:
		if err := s.settle(runCtx, wait); err != nil {
			return nil, categorizeError(err, "waiting for page to settle failed")
		}
	case navigationTimedOut(runCtx, navErr):
		slog.Warn("page load timed out, continuing with loaded content",
			"url", url,
			"timeout", s.cfg.PageLoadTimeout,
		)
		snap.Completeness = models.ContentPartial
		if err := chromedp.Run(runCtx, page.StopLoading()); err != nil {
			slog.Debug("stop loading failed", "url", url, "error", err)
		}
	default:
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}

	var html, title, location string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}
	if err := chromedp.Run(runCtx, chromedp.Title(&title), chromedp.Location(&location)); err != nil {
		slog.Debug("reading page metadata failed", "url", url, "error", err)
	}

	snap.HTML = html
	snap.Title = title
	if location != "" {
		snap.FinalURL = location
	}
	snap.Navigation = time.Since(start)
	rendered = true
	return snap, nil
}

// settle applies the configured readiness strategy, bounded by wait.
func (s *chromedpSession) settle(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	if s.cfg.WaitStrategy == config.WaitFixed {
		return sleepCtx(ctx, wait)
	}
	return waitStable(ctx, wait, stableInterval, outerHTMLLength)
}

// outerHTMLLength is the domProbe used by the chromedp driver.
func outerHTMLLength(ctx context.Context) (int, error) {
	var n int
	err := chromedp.Run(ctx, chromedp.Evaluate(
		`document.documentElement ? document.documentElement.outerHTML.length : 0`, &n))
	return n, err
}

// newTab opens a new target in the shared browser.
func (s *chromedpSession) newTab() (*cdpTab, error) {
	ctx, cancel := chromedp.NewContext(s.browserCtx)

	actions := []chromedp.Action{}
	if s.cfg.Stealth {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	if len(s.cfg.ExtraHeaders) > 0 {
		headers := make(network.Headers, len(s.cfg.ExtraHeaders))
		for k, v := range s.cfg.ExtraHeaders {
			headers[k] = v
		}
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	if err := chromedp.Run(ctx, actions...); err != nil {
		cancel()
		return nil, err
	}
	return &cdpTab{ctx: ctx, cancel: cancel}, nil
}

// releaseTab resets the tab to about:blank and returns it to the pool.
func (s *chromedpSession) releaseTab(tab *cdpTab, rendered bool) {
	ctx, cancel := context.WithTimeout(tab.ctx, resetTimeout)
	err := chromedp.Run(ctx, chromedp.Navigate("about:blank"))
	cancel()
	if err != nil {
		slog.Warn("cleanup: failed to navigate to about:blank, discarding tab", "error", err)
		s.tabs.discard(tab)
		return
	}
	s.tabs.release(tab, rendered)
}

// Close drains the tab pool, then stops the browser and its allocator.
func (s *chromedpSession) Close() error {
	if s == nil || s.browserCtx == nil {
		return nil
	}

	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		slog.Info("browser shutting down: draining tabs", "session", s.id)
		s.tabs.drain(drainTimeout)

		slog.Info("browser shutting down: closing browser", "session", s.id)
		err = chromedp.Cancel(s.browserCtx)
		s.browserCancel()
		s.allocCancel()
		slog.Info("browser shutdown complete", "session", s.id)
	})
	return err
}
