package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8000", "pagemd base URL")
	runs     = flag.Int("runs", 3, "number of runs per URL for averaging")
	waitTime = flag.Float64("wait", 2.0, "wait_time sent with each request, in seconds")
	output   = flag.StringP("output", "o", "benchmark-results.json", "JSON output file path")
	urls     = flag.StringSlice("url", nil, "URL to benchmark (repeatable); defaults to a built-in set")
)

// Test URLs covering 5 site types.
var defaultURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

type convertRequest struct {
	URL      string  `json:"url"`
	WaitTime float64 `json:"wait_time"`
}

type errorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// --- Benchmark result types ---

type runResult struct {
	Run           int    `json:"run"`
	TotalMs       int64  `json:"total_ms"`
	StatusCode    int    `json:"status_code"`
	Content       string `json:"content"`
	Session       string `json:"session"`
	ContentLength int    `json:"content_length"`
	HasLinks      bool   `json:"has_links"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs       float64 `json:"total_ms"`
	ContentLength float64 `json:"content_length"`
	PartialRuns   int     `json:"partial_runs"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	WaitTime   float64     `json:"wait_time"`
	Sessions   []string    `json:"sessions"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== pagemd Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Wait:      %.1fs\n", *waitTime)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure pagemd is running (e.g. go run ./cmd/pagemd)\n")
		os.Exit(1)
	}

	targets := defaultURLs
	if len(*urls) > 0 {
		targets = nil
		for i, u := range *urls {
			targets = append(targets, struct {
				Label string
				URL   string
			}{fmt.Sprintf("URL %d", i+1), u})
		}
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
		WaitTime:   *waitTime,
	}
	client := &http.Client{Timeout: 120 * time.Second}
	sessions := map[string]bool{}

	for _, t := range targets {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(client, t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %s  %s bytes\n", rr.TotalMs, rr.Content, formatInt(rr.ContentLength))
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			if rr.Session != "" && !sessions[rr.Session] {
				sessions[rr.Session] = true
				report.Sessions = append(report.Sessions, rr.Session)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)
	fmt.Printf("Browser sessions observed: %d\n", len(report.Sessions))

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

// checkAPI sends an invalid request; any HTTP answer means the server is up.
func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(baseURL+"/convert", "application/json", strings.NewReader(`{"url":"about:blank"}`))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(client *http.Client, url string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(convertRequest{URL: url, WaitTime: *waitTime})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/convert", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	rr.TotalMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = fmt.Sprintf("read error: %v", err)
		return rr
	}

	rr.StatusCode = resp.StatusCode
	rr.Session = resp.Header.Get("X-Pagemd-Session")
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Code != "" {
			rr.Error = fmt.Sprintf("[%s] %s", e.Code, e.Detail)
		} else {
			rr.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return rr
	}

	rr.Success = true
	rr.Content = resp.Header.Get("X-Pagemd-Content")
	rr.ContentLength = len(body)
	rr.HasLinks = bytes.Contains(body, []byte("](http"))
	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.ContentLength += float64(r.ContentLength)
		if r.Content == "partial" {
			avg.PartialRuns++
		}
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.ContentLength /= n
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tContent Len\tPartial\tLinks\n")
	fmt.Fprintf(w, "───\t───────────\t───────────\t───────\t─────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%s\t%d/%d\t%v\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.TotalMs),
			formatInt(int(r.Averages.ContentLength)),
			r.Averages.PartialRuns,
			len(r.Runs),
			anyLinks(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func anyLinks(runs []runResult) bool {
	for _, r := range runs {
		if r.HasLinks {
			return true
		}
	}
	return false
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
