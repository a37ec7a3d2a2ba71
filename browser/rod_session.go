package browser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
	"github.com/ysmood/gson"

	"github.com/use-agent/pagemd/config"
	"github.com/use-agent/pagemd/models"
)

const (
	// resetTimeout bounds the about:blank navigation done before a tab
	// goes back to the pool.
	resetTimeout = 5 * time.Second

	// drainTimeout bounds how long Close waits for borrowed tabs.
	drainTimeout = 10 * time.Second
)

// rodSession drives Chromium through go-rod.
type rodSession struct {
	id       string
	cfg      config.BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	tabs     *tabPool[rod.Page]

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ Session = (*rodSession)(nil)

// launchRod starts Chromium and connects to it.
func launchRod(cfg config.BrowserConfig) (*rodSession, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Container flags ──────────────────────────────────────────────
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	if cfg.Stealth {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, initError("failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, initError("failed to connect to browser", err)
	}

	s := &rodSession{
		id:       uuid.NewString(),
		cfg:      cfg,
		launcher: l,
		browser:  browser,
		tabs:     newTabPool(cfg.MaxTabs, func(p *rod.Page) {
			_ = p.Close()
		}),
	}
	slog.Info("browser launched",
		"driver", config.DriverRod,
		"session", s.id,
		"controlURL", controlURL,
		"maxTabs", cfg.MaxTabs,
		"pageLoadTimeout", cfg.PageLoadTimeout,
	)
	return s, nil
}

func (s *rodSession) ID() string     { return s.id }
func (s *rodSession) Driver() string { return config.DriverRod }

// Render runs one navigate-wait-read pass in a pooled tab.
//
// Order matters:
//  1. Acquire a tab (blocks while every tab is busy).
//  2. DEFER: reset to about:blank and return the tab.
//  3. Navigate + WaitLoad under the page-load timeout.
//     A timeout here stops loading and marks the snapshot partial.
//  4. Readiness wait (skipped for partial snapshots).
//  5. Read HTML, title, and final URL.
func (s *rodSession) Render(ctx context.Context, url string, wait time.Duration) (*Snapshot, error) {
	if s.closed.Load() {
		return nil, categorizeError(ErrClosed, "browser session closed")
	}
	start := time.Now()

	// ── 1. Acquire tab ───────────────────────────────────────────────
	page, err := s.tabs.acquire(ctx, s.newTab)
	if err != nil {
		return nil, categorizeError(err, "failed to acquire browser tab")
	}
	slog.Debug("tab acquired", "session", s.id, "inUse", s.tabs.inUse(), "maxTabs", s.tabs.size())

	// ── 2. Cleanup uses the tab without the request context so it still
	// runs after the request has been canceled.
	rendered := false
	defer func() { s.releaseTab(page, rendered) }()

	p := page.Context(ctx)
	snap := &Snapshot{URL: url, FinalURL: url, Completeness: models.ContentComplete}

	// ── 3. Navigate under the page-load timeout ──────────────────────
	loading := p.Timeout(s.cfg.PageLoadTimeout)
	navErr := loading.Navigate(url)
	if navErr == nil {
		navErr = loading.WaitLoad()
	}
	loading.CancelTimeout()

	switch {
	case navErr == nil:
		// ── 4. Readiness wait ────────────────────────────────────────
		if err := s.settle(ctx, p, wait); err != nil {
			return nil, categorizeError(err, "waiting for page to settle failed")
		}
	case navigationTimedOut(ctx, navErr):
		slog.Warn("page load timed out, continuing with loaded content",
			"url", url,
			"timeout", s.cfg.PageLoadTimeout,
		)
		snap.Completeness = models.ContentPartial
		if err := (proto.PageStopLoading{}).Call(p); err != nil {
			slog.Debug("stop loading failed", "url", url, "error", err)
		}
	default:
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}

	// ── 5. Extract rendered HTML ─────────────────────────────────────
	html, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}
	snap.HTML = html
	snap.Title = evalStringOrEmpty(p, `() => document.title`)
	if href := evalStringOrEmpty(p, `() => window.location.href`); href != "" {
		snap.FinalURL = href
	}
	snap.Navigation = time.Since(start)
	rendered = true
	return snap, nil
}

// settle applies the configured readiness strategy, bounded by wait.
func (s *rodSession) settle(ctx context.Context, p *rod.Page, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	if s.cfg.WaitStrategy == config.WaitFixed {
		return sleepCtx(ctx, wait)
	}

	bounded := p.Timeout(wait)
	defer bounded.CancelTimeout()
	if err := bounded.WaitDOMStable(stableInterval, 0.1); err != nil && ctx.Err() == nil {
		slog.Debug("DOM still changing at wait bound, proceeding with current DOM",
			"wait", wait,
			"error", err,
		)
	}
	return ctx.Err()
}

// newTab opens a blank tab with the per-session tab setup applied.
func (s *rodSession) newTab() (*rod.Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}

	if s.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if len(s.cfg.ExtraHeaders) > 0 {
		err := proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(s.cfg.ExtraHeaders),
		}.Call(page)
		if err != nil {
			slog.Warn("setting extra headers failed", "error", err)
		}
	}
	return page, nil
}

// releaseTab resets the tab to about:blank and returns it to the pool. A tab
// that cannot be reset is closed and its slot freed.
func (s *rodSession) releaseTab(page *rod.Page, rendered bool) {
	reset := page.Timeout(resetTimeout)
	err := reset.Navigate("about:blank")
	reset.CancelTimeout()
	if err != nil {
		slog.Warn("cleanup: failed to navigate to about:blank, discarding tab", "error", err)
		s.tabs.discard(page)
		return
	}
	s.tabs.release(page, rendered)
}

// Close drains the tab pool and kills the browser process.
func (s *rodSession) Close() error {
	if s == nil || s.browser == nil {
		return nil
	}

	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		slog.Info("browser shutting down: draining tabs", "session", s.id)
		s.tabs.drain(drainTimeout)

		slog.Info("browser shutting down: closing browser", "session", s.id)
		err = s.browser.Close()
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		slog.Info("browser shutdown complete", "session", s.id)
	})
	return err
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
