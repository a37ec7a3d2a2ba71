package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeBrowserInit  = "BROWSER_INIT_FAILED"
	ErrCodeBrowser      = "BROWSER_ERROR"
	ErrCodeConversion   = "CONVERSION_FAILED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body written for every non-2xx response.
type ErrorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// ConvertError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ConvertError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ConvertError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}

// NewConvertError creates a new ConvertError.
func NewConvertError(code, message string, err error) *ConvertError {
	return &ConvertError{Code: code, Message: message, Err: err}
}

// Detail is the human-readable message returned to API callers. The
// underlying cause is included so callers can see what the browser reported.
func (e *ConvertError) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// ToResponse converts an internal error to an API-facing ErrorResponse.
func (e *ConvertError) ToResponse() ErrorResponse {
	return ErrorResponse{Code: e.Code, Detail: e.Detail()}
}

// AsConvertError returns err as a *ConvertError, wrapping anything that is
// not one already as INTERNAL_ERROR.
func AsConvertError(err error) *ConvertError {
	if err == nil {
		return nil
	}
	var ce *ConvertError
	if errors.As(err, &ce) {
		return ce
	}
	return NewConvertError(ErrCodeInternal, "unexpected failure", err)
}
