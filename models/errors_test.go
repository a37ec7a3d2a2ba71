package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestConvertError_Error(t *testing.T) {
	cause := errors.New("net::ERR_NAME_NOT_RESOLVED")

	withCause := NewConvertError(ErrCodeBrowser, "navigation failed", cause)
	if got, want := withCause.Error(), "BROWSER_ERROR: navigation failed: net::ERR_NAME_NOT_RESOLVED"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := NewConvertError(ErrCodeInvalidInput, "bad url", nil)
	if got, want := bare.Error(), "INVALID_INPUT: bad url"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConvertError_Unwrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewConvertError(ErrCodeBrowser, "read html", context.Canceled))

	if !errors.Is(err, context.Canceled) {
		t.Error("errors.Is did not reach the wrapped cause")
	}

	var ce *ConvertError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As did not find the ConvertError")
	}
	if ce.Code != ErrCodeBrowser {
		t.Errorf("Code = %q, want %q", ce.Code, ErrCodeBrowser)
	}
}

func TestConvertError_ToResponse(t *testing.T) {
	resp := NewConvertError(ErrCodeConversion, "markdown conversion failed", errors.New("boom")).ToResponse()
	if resp.Code != ErrCodeConversion {
		t.Errorf("Code = %q", resp.Code)
	}
	if resp.Detail != "markdown conversion failed: boom" {
		t.Errorf("Detail = %q", resp.Detail)
	}
}

func TestAsConvertError(t *testing.T) {
	if AsConvertError(nil) != nil {
		t.Error("AsConvertError(nil) should be nil")
	}

	typed := NewConvertError(ErrCodeBrowser, "crash", nil)
	if got := AsConvertError(fmt.Errorf("ctx: %w", typed)); got != typed {
		t.Errorf("AsConvertError did not return the wrapped ConvertError")
	}

	plain := errors.New("something odd")
	got := AsConvertError(plain)
	if got.Code != ErrCodeInternal {
		t.Errorf("Code = %q, want %q", got.Code, ErrCodeInternal)
	}
	if !errors.Is(got, plain) {
		t.Error("plain error is not preserved as the cause")
	}
}
