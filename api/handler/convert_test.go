package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagemd/api/middleware"
	"github.com/use-agent/pagemd/config"
	"github.com/use-agent/pagemd/converter"
	"github.com/use-agent/pagemd/models"
)

type fakeConverter struct {
	res *converter.Result
	err error

	calls   int
	gotURL  string
	gotWait time.Duration
}

func (f *fakeConverter) Convert(_ context.Context, url string, wait time.Duration) (*converter.Result, error) {
	f.calls++
	f.gotURL = url
	f.gotWait = wait
	return f.res, f.err
}

func newTestEngine(conv Converter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestLog())
	r.POST("/convert", Convert(conv, config.Default().Converter))
	return r
}

func doConvert(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v: %s", err, w.Body.String())
	}
	return resp
}

func TestConvert_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"ftp scheme", `{"url": "ftp://example.com"}`},
		{"no scheme", `{"url": "example.com"}`},
		{"missing url", `{"wait_time": 1}`},
		{"empty url", `{"url": ""}`},
		{"malformed json", `{"url": `},
		{"wrong type", `{"url": 42}`},
		{"negative wait", `{"url": "https://example.com", "wait_time": -1}`},
		{"wait above max", `{"url": "https://example.com", "wait_time": 3600}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeConverter{}
			w := doConvert(t, newTestEngine(fake), tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", w.Code, w.Body.String())
			}
			if fake.calls != 0 {
				t.Errorf("converter called %d times for invalid input", fake.calls)
			}
			if resp := decodeError(t, w); resp.Code != models.ErrCodeInvalidInput || resp.Detail == "" {
				t.Errorf("error body = %+v", resp)
			}
		})
	}
}

func TestConvert_Success(t *testing.T) {
	fake := &fakeConverter{res: &converter.Result{
		Markdown:     "# Example Domain\n\n[More information...](https://www.iana.org/domains/example)\n",
		Completeness: models.ContentComplete,
		SessionID:    "session-1",
	}}
	w := doConvert(t, newTestEngine(fake), `{"url": "https://example.com", "wait_time": 0.1}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != fake.res.Markdown {
		t.Errorf("body = %q, want %q", w.Body.String(), fake.res.Markdown)
	}
	if got := w.Header().Get(models.HeaderContent); got != "complete" {
		t.Errorf("%s = %q, want complete", models.HeaderContent, got)
	}
	if got := w.Header().Get(models.HeaderSession); got != "session-1" {
		t.Errorf("%s = %q, want session-1", models.HeaderSession, got)
	}
	if w.Header().Get(models.HeaderRequestID) == "" {
		t.Errorf("%s header not set", models.HeaderRequestID)
	}
	if fake.gotURL != "https://example.com" {
		t.Errorf("converter url = %q", fake.gotURL)
	}
	if fake.gotWait != 100*time.Millisecond {
		t.Errorf("converter wait = %v, want 100ms", fake.gotWait)
	}
}

func TestConvert_DefaultWait(t *testing.T) {
	fake := &fakeConverter{res: &converter.Result{Completeness: models.ContentComplete}}
	w := doConvert(t, newTestEngine(fake), `{"url": "http://example.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if fake.gotWait != 2*time.Second {
		t.Errorf("converter wait = %v, want 2s", fake.gotWait)
	}
}

func TestConvert_PartialContent(t *testing.T) {
	fake := &fakeConverter{res: &converter.Result{
		Markdown:     "Early",
		Completeness: models.ContentPartial,
		SessionID:    "session-1",
	}}
	w := doConvert(t, newTestEngine(fake), `{"url": "https://slow.example.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for partial content", w.Code)
	}
	if got := w.Header().Get(models.HeaderContent); got != "partial" {
		t.Errorf("%s = %q, want partial", models.HeaderContent, got)
	}
	if w.Body.String() != "Early" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestConvert_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantDetail string
	}{
		{
			name:       "browser error",
			err:        models.NewConvertError(models.ErrCodeBrowser, "navigation to target URL failed", errors.New("net::ERR_NAME_NOT_RESOLVED")),
			wantCode:   models.ErrCodeBrowser,
			wantDetail: "net::ERR_NAME_NOT_RESOLVED",
		},
		{
			name:       "conversion error",
			err:        models.NewConvertError(models.ErrCodeConversion, "failed to convert HTML to Markdown", nil),
			wantCode:   models.ErrCodeConversion,
			wantDetail: "failed to convert",
		},
		{
			name:       "untyped error",
			err:        errors.New("boom"),
			wantCode:   models.ErrCodeInternal,
			wantDetail: "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doConvert(t, newTestEngine(&fakeConverter{err: tt.err}), `{"url": "https://example.com"}`)

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", w.Code)
			}
			resp := decodeError(t, w)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if !strings.Contains(resp.Detail, tt.wantDetail) {
				t.Errorf("detail = %q, want it to contain %q", resp.Detail, tt.wantDetail)
			}
		})
	}
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeBrowser, http.StatusInternalServerError},
		{models.ErrCodeBrowserInit, http.StatusInternalServerError},
		{models.ErrCodeConversion, http.StatusInternalServerError},
		{models.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapErrorToStatus(models.NewConvertError(tt.code, "x", nil)); got != tt.want {
			t.Errorf("mapErrorToStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
