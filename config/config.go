package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Browser drivers.
const (
	DriverRod      = "rod"
	DriverChromedp = "chromedp"
)

// Readiness strategies applied after navigation.
const (
	// WaitStable waits until the DOM stops changing, bounded by wait_time.
	WaitStable = "stable"

	// WaitFixed sleeps for the full wait_time.
	WaitFixed = "fixed"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Converter ConverterConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout is how long in-flight requests get to finish.
	ShutdownTimeout time.Duration // default: 5s
}

// BrowserConfig controls the headless browser session.
type BrowserConfig struct {
	// Driver selects the automation library: "rod" or "chromedp".
	Driver string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to the browser as --proxy-server.
	Proxy string

	// PageLoadTimeout bounds navigation. Exceeding it yields partial content.
	PageLoadTimeout time.Duration // default: 30s

	// MaxTabs is the number of tabs rendering concurrently. 1 serializes
	// every request through a single tab.
	MaxTabs int // default: 1

	// Stealth injects anti-bot-detection evasions into every tab.
	Stealth bool // default: false

	// ExtraHeaders are sent with every request the tabs make.
	ExtraHeaders map[string]string

	// WaitStrategy is WaitStable or WaitFixed.
	WaitStrategy string // default: "stable"
}

// ConverterConfig controls request-level conversion limits.
type ConverterConfig struct {
	// DefaultWait applies when a request omits wait_time.
	DefaultWait time.Duration // default: 2s

	// MaxWait is the largest wait_time a request may ask for.
	MaxWait time.Duration // default: 60s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
	File   string // append to this file instead of stdout when set
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			Mode:            "release",
			ShutdownTimeout: 5 * time.Second,
		},
		Browser: BrowserConfig{
			Driver:          DriverRod,
			Headless:        true,
			NoSandbox:       true,
			PageLoadTimeout: 30 * time.Second,
			MaxTabs:         1,
			WaitStrategy:    WaitStable,
		},
		Converter: ConverterConfig{
			DefaultWait: 2 * time.Second,
			MaxWait:     60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then PAGEMD_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables; each current value is the fallback.
func applyEnv(cfg *Config) {
	cfg.Server.Host = envOr("PAGEMD_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("PAGEMD_PORT", cfg.Server.Port)
	cfg.Server.Mode = envOr("PAGEMD_MODE", cfg.Server.Mode)
	cfg.Server.ShutdownTimeout = envDurationOr("PAGEMD_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Browser.Driver = envOr("PAGEMD_BROWSER_DRIVER", cfg.Browser.Driver)
	cfg.Browser.Headless = envBoolOr("PAGEMD_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.NoSandbox = envBoolOr("PAGEMD_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.BrowserBin = envOr("PAGEMD_BROWSER_BIN", cfg.Browser.BrowserBin)
	cfg.Browser.Proxy = envOr("PAGEMD_PROXY", cfg.Browser.Proxy)
	cfg.Browser.PageLoadTimeout = envDurationOr("PAGEMD_PAGE_LOAD_TIMEOUT", cfg.Browser.PageLoadTimeout)
	cfg.Browser.MaxTabs = envIntOr("PAGEMD_MAX_TABS", cfg.Browser.MaxTabs)
	cfg.Browser.Stealth = envBoolOr("PAGEMD_STEALTH", cfg.Browser.Stealth)
	cfg.Browser.ExtraHeaders = envMapOr("PAGEMD_EXTRA_HEADERS", cfg.Browser.ExtraHeaders)
	cfg.Browser.WaitStrategy = envOr("PAGEMD_WAIT_STRATEGY", cfg.Browser.WaitStrategy)

	cfg.Converter.DefaultWait = envDurationOr("PAGEMD_DEFAULT_WAIT", cfg.Converter.DefaultWait)
	cfg.Converter.MaxWait = envDurationOr("PAGEMD_MAX_WAIT", cfg.Converter.MaxWait)

	cfg.Log.Level = envOr("PAGEMD_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("PAGEMD_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = envOr("PAGEMD_LOG_FILE", cfg.Log.File)
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	switch c.Browser.Driver {
	case DriverRod, DriverChromedp:
	default:
		return fmt.Errorf("config: unknown browser driver %q (want %q or %q)", c.Browser.Driver, DriverRod, DriverChromedp)
	}
	switch c.Browser.WaitStrategy {
	case WaitStable, WaitFixed:
	default:
		return fmt.Errorf("config: unknown wait strategy %q (want %q or %q)", c.Browser.WaitStrategy, WaitStable, WaitFixed)
	}
	if c.Browser.PageLoadTimeout <= 0 {
		return fmt.Errorf("config: page load timeout must be positive, got %s", c.Browser.PageLoadTimeout)
	}
	if c.Browser.MaxTabs < 1 {
		return fmt.Errorf("config: max tabs must be at least 1, got %d", c.Browser.MaxTabs)
	}
	if c.Converter.DefaultWait < 0 {
		return fmt.Errorf("config: default wait must not be negative, got %s", c.Converter.DefaultWait)
	}
	if c.Converter.MaxWait > 0 && c.Converter.DefaultWait > c.Converter.MaxWait {
		return fmt.Errorf("config: default wait %s exceeds max wait %s", c.Converter.DefaultWait, c.Converter.MaxWait)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envMapOr parses "Key=Value,Key2=Value2". Pairs without '=' are skipped.
func envMapOr(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		result[k] = strings.TrimSpace(val)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
