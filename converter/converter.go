// Package converter turns a URL into Markdown by rendering it in the shared
// browser session and converting the resulting DOM.
package converter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"github.com/use-agent/pagemd/browser"
	"github.com/use-agent/pagemd/models"
)

// Renderer produces a rendered snapshot of a page. browser.Session
// satisfies it.
type Renderer interface {
	ID() string
	Render(ctx context.Context, url string, wait time.Duration) (*browser.Snapshot, error)
}

// Result is the outcome of one conversion.
type Result struct {
	Markdown     string
	Completeness models.Completeness

	// SessionID identifies the browser session that rendered the page.
	SessionID string

	Title    string
	FinalURL string

	Navigation time.Duration
	Conversion time.Duration
}

// Partial reports whether the Markdown came from a page that did not finish
// loading.
func (r *Result) Partial() bool {
	return r.Completeness == models.ContentPartial
}

// Converter renders pages and converts them to Markdown. It is safe for
// concurrent use; the renderer bounds how many pages load at once.
type Converter struct {
	renderer    Renderer
	mdConverter *converter.Converter
}

// New creates a Converter backed by r. The Markdown converter is built once
// and reused across all requests.
func New(r Renderer) *Converter {
	return &Converter{
		renderer:    r,
		mdConverter: newMarkdownConverter(),
	}
}

// SessionID reports the id of the backing browser session.
func (c *Converter) SessionID() string {
	if c == nil || c.renderer == nil {
		return ""
	}
	return c.renderer.ID()
}

// Convert renders url, waits up to wait for it to settle, and converts the
// rendered HTML to Markdown. The url must already be validated.
//
// A page that exceeds the page-load timeout is converted as it stood and the
// Result is marked partial. Every other failure is a *models.ConvertError.
func (c *Converter) Convert(ctx context.Context, url string, wait time.Duration) (*Result, error) {
	if c == nil || c.renderer == nil {
		return nil, models.NewConvertError(models.ErrCodeBrowser, "browser not initialized", browser.ErrNotInitialized)
	}

	slog.Info("converting page", "url", url, "wait", wait)

	// ── 1. Render ────────────────────────────────────────────────────
	snap, err := c.renderer.Render(ctx, url, wait)
	if err != nil {
		var ce *models.ConvertError
		if !errors.As(err, &ce) {
			ce = models.NewConvertError(models.ErrCodeBrowser, "browser operation failed", err)
		}
		slog.Error("browser operation failed", "url", url, "code", ce.Code, "error", err)
		return nil, ce
	}
	if snap.Partial() {
		slog.Warn("page load timed out, converting loaded content", "url", url)
	}

	// ── 2. Convert ───────────────────────────────────────────────────
	start := time.Now()
	pageURL := snap.FinalURL
	if pageURL == "" {
		pageURL = url
	}

	doc, err := parseDocument(snap.HTML, pageURL)
	if err != nil {
		slog.Error("conversion failed", "url", url, "error", err)
		return nil, models.NewConvertError(models.ErrCodeConversion, "failed to parse rendered HTML", err)
	}
	md, err := renderMarkdown(c.mdConverter, doc, pageURL)
	if err != nil {
		slog.Error("conversion failed", "url", url, "error", err)
		return nil, models.NewConvertError(models.ErrCodeConversion, "failed to convert HTML to Markdown", err)
	}

	title := snap.Title
	if title == "" {
		title = doc.title
	}

	res := &Result{
		Markdown:     md,
		Completeness: snap.Completeness,
		SessionID:    c.renderer.ID(),
		Title:        title,
		FinalURL:     pageURL,
		Navigation:   snap.Navigation,
		Conversion:   time.Since(start),
	}
	if res.Completeness == "" {
		res.Completeness = models.ContentComplete
	}

	slog.Info("converted page",
		"url", url,
		"finalURL", pageURL,
		"content", res.Completeness,
		"links", doc.links,
		"bytes", len(md),
		"navigation", res.Navigation,
		"conversion", res.Conversion,
	)
	return res, nil
}
