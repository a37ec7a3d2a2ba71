package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultWaitSeconds is the readiness wait applied when wait_time is omitted.
const DefaultWaitSeconds = 2.0

// ConvertRequest is the payload for POST /convert.
type ConvertRequest struct {
	// URL is the page to render. Required; must start with http:// or https://.
	URL string `json:"url" binding:"required"`

	// WaitTime is how long, in seconds, to let the page settle after
	// navigation before the HTML is read. Default: 2.0.
	WaitTime *float64 `json:"wait_time,omitempty"`
}

// Defaults applies default values to unset fields. fallback is used for an
// omitted wait_time; a non-positive fallback means DefaultWaitSeconds.
func (r *ConvertRequest) Defaults(fallback time.Duration) {
	if r.WaitTime == nil {
		w := DefaultWaitSeconds
		if fallback > 0 {
			w = fallback.Seconds()
		}
		r.WaitTime = &w
	}
}

// Validate checks the URL scheme and the wait bound. maxWait <= 0 disables
// the upper bound.
func (r *ConvertRequest) Validate(maxWait time.Duration) error {
	if !strings.HasPrefix(r.URL, "http://") && !strings.HasPrefix(r.URL, "https://") {
		return NewConvertError(ErrCodeInvalidInput, "url must start with http:// or https://", nil)
	}
	if r.WaitTime != nil {
		w := *r.WaitTime
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return NewConvertError(ErrCodeInvalidInput, "wait_time must be a non-negative number", nil)
		}
		if maxWait > 0 && w > maxWait.Seconds() {
			return NewConvertError(ErrCodeInvalidInput,
				fmt.Sprintf("wait_time must not exceed %g seconds", maxWait.Seconds()), nil)
		}
	}
	return nil
}

// Wait returns WaitTime as a duration. Call Defaults first.
func (r *ConvertRequest) Wait() time.Duration {
	if r.WaitTime == nil {
		return 0
	}
	return time.Duration(*r.WaitTime * float64(time.Second))
}
