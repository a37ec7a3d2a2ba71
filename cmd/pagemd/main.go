package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/use-agent/pagemd/api"
	"github.com/use-agent/pagemd/browser"
	"github.com/use-agent/pagemd/config"
	"github.com/use-agent/pagemd/converter"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	flags, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if flags.version {
		fmt.Println("pagemd", Version)
		return
	}

	cfg, err := config.Load(flags.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := flags.apply(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	logCloser, err := initLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logCloser.Close()

	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))

	slog.Info("pagemd starting",
		"version", Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"driver", cfg.Browser.Driver,
		"maxTabs", cfg.Browser.MaxTabs,
		"waitStrategy", cfg.Browser.WaitStrategy,
	)

	// ── 3. Launch browser before accepting traffic ──────────────────
	session, err := browser.Launch(cfg.Browser)
	if err != nil {
		slog.Error("browser initialisation failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}

	// ── 4. Setup router ─────────────────────────────────────────────
	conv := converter.New(session)
	router := api.NewRouter(conv, cfg)

	// ── 5. Start HTTP server ────────────────────────────────────────
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr, "session", session.ID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// The browser outlives the listener so drained requests can finish.
	if err := session.Close(); err != nil {
		slog.Error("browser close failed", "error", err)
	}
	slog.Info("pagemd stopped")

	if exitCode != 0 {
		logCloser.Close()
		os.Exit(exitCode)
	}
}

// nopCloser is returned by initLogger when logging to stdout.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// initLogger configures slog based on the LogConfig. When cfg.File is set,
// records are appended to that file instead of stdout.
func initLogger(cfg config.LogConfig) (io.Closer, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log: open %s: %w", cfg.File, err)
		}
		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	return closer, nil
}
