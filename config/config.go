// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Mirror backends selectable via FINDHUB_MIRROR_BACKEND.
const (
	MirrorNone  = "none"
	MirrorMinio = "minio"
	MirrorS3    = "s3"
)

// Config holds all configuration for the findhub service.
type Config struct {
	// HTTP server
	Addr string

	// Catalog
	DataDir     string
	Dimension   int
	Alpha       float64
	RecallLimit int

	// Extraction service
	ExtractorBaseURL string
	ExtractorAPIKey  string
	ExtractorRPS     float64

	// Mirror
	MirrorBackend  string
	MirrorBucket   string
	MirrorPrefix   string
	MirrorEndpoint string // minio only
	MirrorAccess   string // minio only
	MirrorSecret   string // minio only
}

// Load reads configuration from environment variables and returns a
// Config struct. It applies defaults for optional fields and validates
// required ones. If a .env file exists in the current directory, it is
// loaded first; variables already set take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:             getEnv("FINDHUB_ADDR", ":8000"),
		DataDir:          getEnv("FINDHUB_DATA_DIR", "./data"),
		ExtractorBaseURL: getEnv("FINDHUB_EXTRACTOR_URL", "http://localhost:8081"),
		ExtractorAPIKey:  getEnv("FINDHUB_EXTRACTOR_API_KEY", ""),
		MirrorBackend:    getEnv("FINDHUB_MIRROR_BACKEND", MirrorNone),
		MirrorBucket:     getEnv("FINDHUB_MIRROR_BUCKET", ""),
		MirrorPrefix:     getEnv("FINDHUB_MIRROR_PREFIX", "findhub"),
		MirrorEndpoint:   getEnv("FINDHUB_MIRROR_ENDPOINT", ""),
		MirrorAccess:     getEnv("FINDHUB_MIRROR_ACCESS_KEY", ""),
		MirrorSecret:     getEnv("FINDHUB_MIRROR_SECRET_KEY", ""),
	}

	var err error

	// Must match the output size of the embedding model served by the
	// extractor; changing it requires rebuilding the vector index.
	if cfg.Dimension, err = getEnvInt("FINDHUB_DIMENSION", 512); err != nil {
		return nil, err
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("FINDHUB_DIMENSION must be greater than 0")
	}

	if cfg.Alpha, err = getEnvFloat("FINDHUB_ALPHA", 0.8); err != nil {
		return nil, err
	}
	if cfg.Alpha < 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("FINDHUB_ALPHA must be in [0,1]")
	}

	if cfg.RecallLimit, err = getEnvInt("FINDHUB_RECALL_LIMIT", 100); err != nil {
		return nil, err
	}
	if cfg.RecallLimit <= 0 {
		return nil, fmt.Errorf("FINDHUB_RECALL_LIMIT must be greater than 0")
	}

	if cfg.ExtractorRPS, err = getEnvFloat("FINDHUB_EXTRACTOR_RPS", 0); err != nil {
		return nil, err
	}

	switch cfg.MirrorBackend {
	case MirrorNone:
	case MirrorMinio:
		if cfg.MirrorBucket == "" || cfg.MirrorEndpoint == "" {
			return nil, fmt.Errorf("minio mirror requires FINDHUB_MIRROR_BUCKET and FINDHUB_MIRROR_ENDPOINT")
		}
	case MirrorS3:
		if cfg.MirrorBucket == "" {
			return nil, fmt.Errorf("s3 mirror requires FINDHUB_MIRROR_BUCKET")
		}
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.MirrorBackend)
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

func getEnvInt(key string, defaultValue int) (int, error) {
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

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}

	return f, nil
}
