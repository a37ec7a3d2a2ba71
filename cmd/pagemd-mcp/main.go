package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// convertRequest mirrors the pagemd POST /convert body.
type convertRequest struct {
	URL      string   `json:"url"`
	WaitTime *float64 `json:"wait_time,omitempty"`
}

// errorResponse mirrors the pagemd error body.
type errorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func main() {
	apiURL := os.Getenv("PAGEMD_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}

	s := server.NewMCPServer(
		"pagemd",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(convertURLTool(), handleConvertURL(strings.TrimRight(apiURL, "/"), &http.Client{Timeout: 120 * time.Second}))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func convertURLTool() mcp.Tool {
	return mcp.NewTool("convert_url",
		mcp.WithDescription("Render a web page in a headless browser and return it as Markdown. Links and images are preserved. Works on JavaScript-heavy pages."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http:// or https:// URL of the page to convert"),
		),
		mcp.WithNumber("wait_time",
			mcp.Description("Seconds to let the page settle after loading (default 2)"),
		),
	)
}

func handleConvertURL(apiURL string, client *http.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := convertRequest{URL: url}
		if wait := request.GetFloat("wait_time", -1); wait >= 0 {
			reqBody.WaitTime = &wait
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/convert", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		if resp.StatusCode != http.StatusOK {
			var e errorResponse
			if err := json.Unmarshal(respBody, &e); err == nil && e.Code != "" {
				return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", e.Code, e.Detail)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("convert failed: HTTP %d", resp.StatusCode)), nil
		}

		result := string(respBody)
		if resp.Header.Get("X-Pagemd-Content") == "partial" {
			result = "Note: the page did not finish loading; content may be incomplete.\n\n" + result
		}
		return mcp.NewToolResultText(result), nil
	}
}
