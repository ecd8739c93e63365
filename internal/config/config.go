// Package config loads process configuration from the environment, with a
// .env file honored in development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend selects which collaborator implementation submits reports.
const (
	BackendAPI         = "api"
	BackendObjectStore = "objectstore"
)

type Config struct {
	Env     string
	Backend string

	APIBaseURL string
	MediaRoot  string
	UserAgent  string

	MaxImages       int
	MaxVideos       int
	MaxRecording    time.Duration
	HighlightWindow time.Duration

	Store StoreConfig
}

// StoreConfig configures the direct-to-storage backend.
type StoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("REPORT_BACKEND")))
	if backend != BackendObjectStore {
		backend = BackendAPI
	}

	return &Config{
		Env:             env,
		Backend:         backend,
		APIBaseURL:      firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_API_URL")), "http://localhost:8080"),
		MediaRoot:       firstNonEmpty(strings.TrimSpace(os.Getenv("MEDIA_ROOT")), "."),
		UserAgent:       strings.TrimSpace(os.Getenv("CLIENT_USER_AGENT")),
		MaxImages:       envInt("MAX_IMAGES", 5),
		MaxVideos:       envInt("MAX_VIDEOS", 2),
		MaxRecording:    envSeconds("MAX_RECORDING_SECONDS", 30*time.Second),
		HighlightWindow: envSeconds("HIGHLIGHT_SECONDS", 5*time.Second),
		Store:           loadStoreConfig(env),
	}, nil
}

func loadStoreConfig(env string) StoreConfig {
	return StoreConfig{
		Endpoint:  resolveStoreEndpoint(env),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_BUCKET")), "fieldreport-media"),
		UseSSL:    resolveStoreUseSSL(env),
	}
}

func resolveStoreEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("REPORT_S3_ENDPOINT"))
}

func resolveStoreUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("REPORT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
