package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagemd/api/middleware"
	"github.com/use-agent/pagemd/config"
	"github.com/use-agent/pagemd/converter"
	"github.com/use-agent/pagemd/models"
)

// Converter is the conversion dependency of the handler.
type Converter interface {
	Convert(ctx context.Context, url string, wait time.Duration) (*converter.Result, error)
}

// Convert returns a handler for POST /convert.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults. Invalid input never reaches
//     the browser.
//  2. Converter.Convert → Markdown + completeness.
//  3. Set result headers, return the Markdown as text/plain.
func Convert(conv Converter, cfg config.ConverterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := middleware.RequestID(c)

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ConvertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewConvertError(models.ErrCodeInvalidInput, "invalid request body", err))
			return
		}
		req.Defaults(cfg.DefaultWait)
		if err := req.Validate(cfg.MaxWait); err != nil {
			respondError(c, err)
			return
		}

		// ── 2. Convert ──────────────────────────────────────────────
		res, err := conv.Convert(c.Request.Context(), req.URL, req.Wait())
		if err != nil {
			level := slog.LevelError
			if isClientGone(err) {
				level = slog.LevelInfo
			}
			slog.Log(c.Request.Context(), level, "conversion request failed",
				"requestID", requestID,
				"url", req.URL,
				"elapsed", time.Since(start),
				"error", err,
			)
			respondError(c, err)
			return
		}

		// ── 3. Respond ──────────────────────────────────────────────
		c.Header(models.HeaderContent, string(res.Completeness))
		c.Header(models.HeaderSession, res.SessionID)

		slog.Info("conversion request completed",
			"requestID", requestID,
			"url", req.URL,
			"content", res.Completeness,
			"elapsed", time.Since(start),
		)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(res.Markdown))
	}
}

// respondError maps a ConvertError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	ce := models.AsConvertError(err)
	_ = c.Error(err)
	c.JSON(mapErrorToStatus(ce), ce.ToResponse())
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ConvertError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}

// isClientGone reports whether err stems from the caller disconnecting.
func isClientGone(err error) bool {
	return errors.Is(err, context.Canceled)
}
