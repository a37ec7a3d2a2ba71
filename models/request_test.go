package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

func TestConvertRequest_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		wait     *float64
		fallback time.Duration
		want     float64
	}{
		{"omitted uses built-in default", nil, 0, DefaultWaitSeconds},
		{"omitted uses configured default", nil, 500 * time.Millisecond, 0.5},
		{"explicit zero is kept", floatPtr(0), 3 * time.Second, 0},
		{"explicit value is kept", floatPtr(0.1), 3 * time.Second, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ConvertRequest{URL: "https://example.com", WaitTime: tt.wait}
			r.Defaults(tt.fallback)
			if r.WaitTime == nil {
				t.Fatal("WaitTime is nil after Defaults")
			}
			if *r.WaitTime != tt.want {
				t.Errorf("WaitTime = %v, want %v", *r.WaitTime, tt.want)
			}
		})
	}
}

func TestConvertRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wait    *float64
		maxWait time.Duration
		wantErr bool
	}{
		{"https", "https://example.com", nil, 0, false},
		{"http", "http://example.com/path?q=1", floatPtr(2), time.Minute, false},
		{"missing scheme", "example.com", nil, 0, true},
		{"ftp scheme", "ftp://example.com", nil, 0, true},
		{"javascript scheme", "javascript:alert(1)", nil, 0, true},
		{"uppercase scheme is not accepted", "HTTPS://example.com", nil, 0, true},
		{"empty", "", nil, 0, true},
		{"leading space", " https://example.com", nil, 0, true},
		{"negative wait", "https://example.com", floatPtr(-1), 0, true},
		{"NaN wait", "https://example.com", floatPtr(math.NaN()), 0, true},
		{"wait over max", "https://example.com", floatPtr(61), time.Minute, true},
		{"wait at max", "https://example.com", floatPtr(60), time.Minute, false},
		{"no max", "https://example.com", floatPtr(600), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ConvertRequest{URL: tt.url, WaitTime: tt.wait}
			err := r.Validate(tt.maxWait)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var ce *ConvertError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not a *ConvertError", err)
			}
			if ce.Code != ErrCodeInvalidInput {
				t.Errorf("Code = %q, want %q", ce.Code, ErrCodeInvalidInput)
			}
		})
	}
}

func TestConvertRequest_Wait(t *testing.T) {
	r := ConvertRequest{WaitTime: floatPtr(0.25)}
	if got := r.Wait(); got != 250*time.Millisecond {
		t.Errorf("Wait() = %v, want 250ms", got)
	}

	var empty ConvertRequest
	if got := empty.Wait(); got != 0 {
		t.Errorf("Wait() on unset request = %v, want 0", got)
	}
}
