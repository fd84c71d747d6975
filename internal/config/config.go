// Package config provides YAML-based configuration with environment overrides
// and hot reload.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/teestudio/backend/internal/canvas"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Canvas     CanvasConfig     `yaml:"canvas"`
	Generation GenerationConfig `yaml:"generation"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCors"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds"`
	BodyLimit    string `yaml:"bodyLimit"`
}

// StorageConfig contains asset and database settings.
type StorageConfig struct {
	DataDirectory   string `yaml:"dataDirectory"`
	AssetsDirectory string `yaml:"assetsDirectory"`
	Driver          string `yaml:"driver"` // "duckdb" or "sqlite"
	DatabasePath    string `yaml:"databasePath"`
}

// CanvasConfig tunes design sessions and their engines.
type CanvasConfig struct {
	Width                  int     `yaml:"width"`
	Height                 int     `yaml:"height"`
	Background             string  `yaml:"background"`
	DebounceMs             int     `yaml:"debounceMs"`
	ExportScale            int     `yaml:"exportScale"`
	ImageMargin            float64 `yaml:"imageMargin"`
	GuideInset             float64 `yaml:"guideInset"`
	MaxDimension           int     `yaml:"maxDimension"`
	PlaceholderText        string  `yaml:"placeholderText"`
	BrushColor             string  `yaml:"brushColor"`
	BrushWidth             float64 `yaml:"brushWidth"`
	MockupSize             int     `yaml:"mockupSize"`
	MaxSessions            int     `yaml:"maxSessions"`
	SessionTimeoutMinutes  int     `yaml:"sessionTimeoutMinutes"`
	CleanupIntervalMinutes int     `yaml:"cleanupIntervalMinutes"`
}

// GenerationConfig points at the external image generator.
type GenerationConfig struct {
	Endpoint            string `yaml:"endpoint"`
	APIKey              string `yaml:"apiKey"`
	TimeoutSeconds      int    `yaml:"timeoutSeconds"`
	MaxRetries          int    `yaml:"maxRetries"`
	BackoffMs           int    `yaml:"backoffMs"`
	JobRetentionMinutes int    `yaml:"jobRetentionMinutes"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	RequireAuth         bool   `yaml:"requireAuthentication"`
	AuthToken           string `yaml:"authToken"`
	AllowDesignDeletion bool   `yaml:"allowDesignDeletion"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level                string `yaml:"level"`  // debug, info, warn, error
	Format               string `yaml:"format"` // text or json
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "25M",
		},
		Storage: StorageConfig{
			DataDirectory:   "./data",
			AssetsDirectory: "./data/assets",
			Driver:          "sqlite",
			DatabasePath:    "./data/designs.db",
		},
		Canvas: CanvasConfig{
			Width:                  500,
			Height:                 500,
			Background:             "#ffffff",
			DebounceMs:             200,
			ExportScale:            2,
			ImageMargin:            40,
			GuideInset:             0.1,
			MaxDimension:           4096,
			PlaceholderText:        "Your design here",
			BrushColor:             "#000000",
			BrushWidth:             5,
			MockupSize:             600,
			MaxSessions:            50,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Generation: GenerationConfig{
			TimeoutSeconds:      60,
			MaxRetries:          2,
			BackoffMs:           500,
			JobRetentionMinutes: 30,
		},
		Security: SecurityConfig{
			RequireAuth:         false,
			AllowDesignDeletion: true,
		},
		Logging: LoggingConfig{
			Level:                "info",
			Format:               "text",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file. Keys missing from the
// file keep their defaults. A missing file is created with the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save writes the configuration as YAML.
func (c *AppConfig) Save(configPath string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Tee design studio configuration\n# This file is auto-generated on first run\n\n")
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, append(header, out...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("STUDIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("STUDIO_DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.AssetsDirectory = filepath.Join(dataDir, "assets")
		c.Storage.DatabasePath = filepath.Join(dataDir, "designs.db")
	}

	if driver := os.Getenv("STUDIO_DB_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}

	if url := os.Getenv("STUDIO_GENERATOR_URL"); url != "" {
		c.Generation.Endpoint = url
	}

	if token := os.Getenv("STUDIO_AUTH_TOKEN"); token != "" {
		c.Security.AuthToken = token
		c.Security.RequireAuth = true
	}
}

// resolvePaths converts relative paths to absolute based on config file location.
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.AssetsDirectory,
		&c.Storage.DatabasePath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Driver {
	case "duckdb", "sqlite":
	default:
		return fmt.Errorf("storage.driver %q must be duckdb or sqlite", c.Storage.Driver)
	}
	cv := c.Canvas
	if cv.MaxDimension <= 0 || cv.Width <= 0 || cv.Height <= 0 || cv.Width > cv.MaxDimension || cv.Height > cv.MaxDimension {
		return fmt.Errorf("canvas size %dx%d invalid (max %d)", cv.Width, cv.Height, cv.MaxDimension)
	}
	if _, err := canvas.ParseColor(cv.Background); err != nil {
		return fmt.Errorf("canvas.background: %w", err)
	}
	if _, err := canvas.ParseColor(cv.BrushColor); err != nil {
		return fmt.Errorf("canvas.brushColor: %w", err)
	}
	if cv.DebounceMs <= 0 {
		return errors.New("canvas.debounceMs must be positive")
	}
	if cv.ExportScale < 1 || cv.ExportScale > 4 {
		return fmt.Errorf("canvas.exportScale %d must be between 1 and 4", cv.ExportScale)
	}
	if cv.GuideInset <= 0 || cv.GuideInset >= 0.5 {
		return fmt.Errorf("canvas.guideInset %v must be in (0, 0.5)", cv.GuideInset)
	}
	if cv.ImageMargin < 0 || cv.BrushWidth <= 0 {
		return errors.New("canvas.imageMargin and canvas.brushWidth must not be negative")
	}
	if cv.MaxSessions <= 0 || cv.SessionTimeoutMinutes <= 0 || cv.CleanupIntervalMinutes <= 0 {
		return errors.New("canvas.maxSessions and the session timers must be positive")
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	if c.Security.RequireAuth && c.Security.AuthToken == "" {
		return errors.New("security.authToken is required when authentication is enabled")
	}
	return nil
}

// CanvasOptions converts the canvas section into engine options.
func (c *AppConfig) CanvasOptions() canvas.Options {
	return canvas.Options{
		Debounce:        time.Duration(c.Canvas.DebounceMs) * time.Millisecond,
		ExportScale:     c.Canvas.ExportScale,
		ImageMargin:     c.Canvas.ImageMargin,
		GuideInset:      c.Canvas.GuideInset,
		MaxDimension:    c.Canvas.MaxDimension,
		PlaceholderText: c.Canvas.PlaceholderText,
		Brush:           canvas.Brush{Color: c.Canvas.BrushColor, Width: c.Canvas.BrushWidth},
	}
}

// LogLevel returns the configured slog level.
func (c *AppConfig) LogLevel() slog.Level {
	l, _ := parseLevel(c.Logging.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level %q: %w", s, err)
	}
	return l, nil
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.AssetsDirectory,
		filepath.Dir(c.Storage.DatabasePath),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
