// Package browser owns the headless browser session shared by every request.
//
// A Session is launched once at startup and closed at shutdown. Each render
// borrows a tab from a bounded pool, so concurrent requests never share a
// navigation context while still reusing one browser process.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/use-agent/pagemd/config"
	"github.com/use-agent/pagemd/models"
)

// Session is a running headless browser.
type Session interface {
	// ID identifies this browser instance. It is stable for the lifetime of
	// the session.
	ID() string

	// Driver reports the automation library in use.
	Driver() string

	// Render navigates a tab to url, lets it settle for up to wait, and
	// returns the rendered document. A navigation that exceeds the
	// page-load timeout yields a partial Snapshot, not an error.
	Render(ctx context.Context, url string, wait time.Duration) (*Snapshot, error)

	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Snapshot is the rendered state of a page at the moment it was read.
type Snapshot struct {
	// HTML is the serialized document element.
	HTML string

	// URL is the address that was requested.
	URL string

	// FinalURL is window.location.href after navigation, or URL when it
	// could not be read.
	FinalURL string

	// Title is document.title (best-effort).
	Title string

	Completeness models.Completeness

	// Navigation covers navigation plus the readiness wait.
	Navigation time.Duration
}

// Partial reports whether the page-load timeout cut navigation short.
func (s *Snapshot) Partial() bool {
	return s.Completeness == models.ContentPartial
}

// Launch starts the browser selected by cfg.Driver. Any failure is returned
// as a BROWSER_INIT_FAILED error; callers should refuse to serve traffic.
func Launch(cfg config.BrowserConfig) (Session, error) {
	if cfg.MaxTabs < 1 {
		cfg.MaxTabs = 1
	}
	switch cfg.Driver {
	case config.DriverRod, "":
		s, err := launchRod(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverChromedp:
		s, err := launchChromedp(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, models.NewConvertError(
			models.ErrCodeBrowserInit,
			fmt.Sprintf("unknown browser driver %q", cfg.Driver),
			nil,
		)
	}
}

// initError wraps a launch failure.
func initError(msg string, err error) *models.ConvertError {
	return models.NewConvertError(models.ErrCodeBrowserInit, msg, err)
}
