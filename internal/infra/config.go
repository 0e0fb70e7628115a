package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderConfig is the per-backend environment surface: an API key plus
// per-media-type comma-separated model id lists. Absence of the key or of
// every model list disables the backend entirely and silently.
type ProviderConfig struct {
	APIKey      string
	BaseURL     string
	SocketURL   string
	ImageModels []string
	VideoModels []string
	AudioModels []string
	Disabled    bool
}

// HasModels reports whether at least one model list is non-empty.
func (p ProviderConfig) HasModels() bool {
	return len(p.ImageModels) > 0 || len(p.VideoModels) > 0 || len(p.AudioModels) > 0
}

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	StoragePath string

	Fal   ProviderConfig
	Sogni ProviderConfig

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	PollInterval     time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. DatabaseURL is optional: without it the task ledger
// is disabled and the service runs purely in-memory.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StoragePath: os.Getenv("STORAGE_PATH"),
		Fal: ProviderConfig{
			APIKey:      os.Getenv("FAL_API_KEY"),
			BaseURL:     getEnv("FAL_BASE_URL", "https://queue.fal.run"),
			ImageModels: splitModels(os.Getenv("FAL_IMAGE_MODELS")),
			VideoModels: splitModels(os.Getenv("FAL_VIDEO_MODELS")),
			AudioModels: splitModels(os.Getenv("FAL_AUDIO_MODELS")),
			Disabled:    getEnvBool("FAL_DISABLED", false),
		},
		Sogni: ProviderConfig{
			APIKey:      os.Getenv("SOGNI_API_KEY"),
			BaseURL:     getEnv("SOGNI_BASE_URL", "https://api.sogni.ai"),
			SocketURL:   getEnv("SOGNI_SOCKET_URL", "wss://socket.sogni.ai/api/v1/events"),
			ImageModels: splitModels(os.Getenv("SOGNI_IMAGE_MODELS")),
			VideoModels: splitModels(os.Getenv("SOGNI_VIDEO_MODELS")),
			AudioModels: splitModels(os.Getenv("SOGNI_AUDIO_MODELS")),
			Disabled:    getEnvBool("SOGNI_DISABLED", false),
		},
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3)),
	}

	return cfg, nil
}

// splitModels parses a comma-separated model id list, dropping empty items.
func splitModels(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var models []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			models = append(models, item)
		}
	}
	return models
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
