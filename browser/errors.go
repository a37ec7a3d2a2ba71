package browser

import (
	"context"
	"errors"

	"github.com/use-agent/pagemd/models"
)

// Sentinel errors for session state.
var (
	ErrNotInitialized = errors.New("browser session not initialized")
	ErrClosed         = errors.New("browser session closed")
)

// navigationTimedOut reports whether navErr is the page-load timeout firing,
// as opposed to the caller's own context ending or a real browser failure.
// parent is the request context the timeout was derived from.
func navigationTimedOut(parent context.Context, navErr error) bool {
	if navErr == nil || parent.Err() != nil {
		return false
	}
	return errors.Is(navErr, context.DeadlineExceeded)
}

// categorizeError wraps raw driver errors into typed ConvertErrors so the API
// layer can map them to HTTP status codes.
func categorizeError(err error, msg string) *models.ConvertError {
	var ce *models.ConvertError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, context.Canceled):
		return models.NewConvertError(models.ErrCodeBrowser, "request canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewConvertError(models.ErrCodeBrowser, "request deadline exceeded", err)
	default:
		return models.NewConvertError(models.ErrCodeBrowser, msg, err)
	}
}
