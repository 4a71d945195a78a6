package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// RootDataFolder is the base directory holding the database file and the
	// "data" folder with page images. When empty, the documents service
	// resolves (and persists) a platform-appropriate default at startup.
	RootDataFolder string

	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	// ImportBatchSize caps how many native-processing calls run concurrently
	// during import. Kept low to bound memory usage on constrained devices.
	ImportBatchSize int

	// Resize thresholds passed to the native processor. Images are shrunk to
	// these sizes before detection to keep the native calls fast.
	QRCodeResizeThreshold  int
	CornersResizeThreshold int
	PaletteResizeThreshold int

	// Compression settings for images produced by crop/import.
	ImageFormat  string
	ImageQuality int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		RootDataFolder: getEnv("ROOT_DATA_FOLDER", ""),
		APIPort:        getEnv("API_PORT", "9100"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		ImageFormat:    getEnv("IMAGE_FORMAT", "jpg"),
	}

	cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg.ImportBatchSize, err = getIntEnv("IMPORT_BATCH_SIZE", 5)
	if err != nil {
		return nil, err
	}
	if cfg.ImportBatchSize <= 0 {
		return nil, fmt.Errorf("IMPORT_BATCH_SIZE must be greater than 0")
	}

	cfg.QRCodeResizeThreshold, err = getIntEnv("QRCODE_RESIZE_THRESHOLD", 900)
	if err != nil {
		return nil, err
	}
	cfg.CornersResizeThreshold, err = getIntEnv("CORNERS_RESIZE_THRESHOLD", 300)
	if err != nil {
		return nil, err
	}
	cfg.PaletteResizeThreshold, err = getIntEnv("PALETTE_RESIZE_THRESHOLD", 100)
	if err != nil {
		return nil, err
	}

	cfg.ImageQuality, err = getIntEnv("IMAGE_QUALITY", 80)
	if err != nil {
		return nil, err
	}
	if cfg.ImageQuality < 1 || cfg.ImageQuality > 100 {
		return nil, fmt.Errorf("IMAGE_QUALITY must be between 1 and 100")
	}

	switch cfg.ImageFormat {
	case "jpg", "png", "webp":
	default:
		return nil, fmt.Errorf("IMAGE_FORMAT must be one of jpg, png, webp")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value.
func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

// parseLogLevel converts a level name to a slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
}
