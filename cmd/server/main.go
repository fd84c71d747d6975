package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/teestudio/backend/internal/api"
	"github.com/teestudio/backend/internal/canvas"
	"github.com/teestudio/backend/internal/config"
	"github.com/teestudio/backend/internal/designstore"
	"github.com/teestudio/backend/internal/generate"
	"github.com/teestudio/backend/internal/session"
	"github.com/teestudio/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := os.Getenv("STUDIO_CONFIG")
	if configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(filepath.Dir(exePath), "studio.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg)

	if err := cfg.EnsureDirectories(); err != nil {
		fatal("failed to create directories", err)
	}

	// Asset storage
	assets, err := storage.NewLocalStore(cfg.Storage.AssetsDirectory)
	if err != nil {
		fatal("failed to initialize asset storage", err)
	}
	if n, err := assets.Reindex(); err != nil {
		slog.Warn("asset reindex failed", "error", err)
	} else {
		slog.Info("assets indexed", "count", n)
	}

	// Saved designs
	designs, err := designstore.Open(cfg.Storage.Driver, cfg.Storage.DatabasePath)
	if err != nil {
		fatal("failed to open design store", err)
	}
	defer designs.Close()

	// Design sessions
	sessions := session.NewManager(cfg.Canvas.MaxSessions, cfg.CanvasOptions())
	defer sessions.Close()

	// Image generation, optional
	var jobs api.JobManager
	var genMgr *generate.Manager
	if cfg.Generation.Endpoint != "" {
		client := generate.NewClient(generate.ClientConfig{
			Endpoint:   cfg.Generation.Endpoint,
			APIKey:     cfg.Generation.APIKey,
			Timeout:    time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.Generation.MaxRetries,
			Backoff:    time.Duration(cfg.Generation.BackoffMs) * time.Millisecond,
		})
		genMgr = generate.NewManager(client, sessions)
		defer genMgr.Close()
		jobs = genMgr
	} else {
		slog.Info("image generation disabled, no endpoint configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, cfg, sessions, genMgr)

	// Canvas tuning reloads without a restart
	watcher, err := config.NewWatcher(configPath, func(next *config.AppConfig) {
		sessions.SetCanvasOptions(next.CanvasOptions())
		slog.Info("canvas options reloaded", "path", configPath)
	})
	if err != nil {
		slog.Warn("config hot reload unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RequestLogging: cfg.Logging.EnableRequestLogging,
		ServiceKey:     serviceKey(cfg),
	})
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions: sessions,
		Jobs:     jobs,
		Assets:   assets,
		Designs:  designs,
		Defaults: api.SessionDefaults{
			Width:      cfg.Canvas.Width,
			Height:     cfg.Canvas.Height,
			Background: cfg.Canvas.Background,
			MockupSize: cfg.Canvas.MockupSize,
		},
		Design:  api.DesignOptions{AllowDeletion: cfg.Security.AllowDesignDeletion},
		Version: Version,
	}))

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(configPath, cfg)

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server stopped", "error", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}
}

func setupLogger(cfg *config.AppConfig) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	canvas.SetLogger(logger.With("component", "canvas"))
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func serviceKey(cfg *config.AppConfig) string {
	if !cfg.Security.RequireAuth {
		return ""
	}
	return cfg.Security.AuthToken
}

// runCleanup expires idle sessions and finished generation jobs.
func runCleanup(ctx context.Context, cfg *config.AppConfig, sessions *session.Manager, jobs *generate.Manager) {
	ticker := time.NewTicker(time.Duration(cfg.Canvas.CleanupIntervalMinutes) * time.Minute)
	defer ticker.Stop()
	sessionTTL := time.Duration(cfg.Canvas.SessionTimeoutMinutes) * time.Minute
	jobTTL := time.Duration(cfg.Generation.JobRetentionMinutes) * time.Minute
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.CleanupOldSessions(sessionTTL); n > 0 {
				slog.Info("expired idle sessions", "count", n)
			}
			if jobs != nil && jobTTL > 0 {
				jobs.CleanupOldJobs(jobTTL)
			}
		}
	}
}

func printBanner(configPath string, cfg *config.AppConfig) {
	generation := "disabled"
	if cfg.Generation.Endpoint != "" {
		generation = cfg.Generation.Endpoint
	}
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           T-Shirt Design Studio Server                    ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Store:      %-45s║\n", cfg.Storage.Driver)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("║  Generator: %-46s║\n", generation)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
