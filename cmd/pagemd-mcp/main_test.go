package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func callTool(t *testing.T, apiURL string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = "convert_url"
	req.Params.Arguments = args

	res, err := handleConvertURL(apiURL, http.DefaultClient)(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
		return ""
	}
}

func TestHandleConvertURL_Success(t *testing.T) {
	var got convertRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/convert" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("X-Pagemd-Content", "complete")
		w.Write([]byte("# Example Domain\n"))
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, map[string]any{"url": "https://example.com", "wait_time": 0.5})
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if text := resultText(t, res); text != "# Example Domain\n" {
		t.Errorf("text = %q", text)
	}
	if got.URL != "https://example.com" || got.WaitTime == nil || *got.WaitTime != 0.5 {
		t.Errorf("forwarded request = %+v", got)
	}
}

func TestHandleConvertURL_OmittedWait(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	callTool(t, srv.URL, map[string]any{"url": "https://example.com"})
	if _, ok := raw["wait_time"]; ok {
		t.Errorf("wait_time forwarded although omitted: %v", raw)
	}
}

func TestHandleConvertURL_Partial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Pagemd-Content", "partial")
		w.Write([]byte("Early"))
	}))
	defer srv.Close()

	text := resultText(t, callTool(t, srv.URL, map[string]any{"url": "https://slow.example.com"}))
	if !strings.Contains(text, "did not finish loading") || !strings.HasSuffix(text, "Early") {
		t.Errorf("text = %q", text)
	}
}

func TestHandleConvertURL_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"INVALID_INPUT","detail":"url must start with http:// or https://"}`))
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, map[string]any{"url": "ftp://example.com"})
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	if text := resultText(t, res); !strings.Contains(text, "[INVALID_INPUT]") {
		t.Errorf("text = %q", text)
	}
}

func TestHandleConvertURL_MissingURL(t *testing.T) {
	res := callTool(t, "http://127.0.0.1:0", map[string]any{})
	if !res.IsError {
		t.Error("expected tool error for missing url")
	}
}
