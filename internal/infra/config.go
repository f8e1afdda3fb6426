package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultImageModels is the shipped fallback order.
var DefaultImageModels = []string{
	"gemini-2.5-flash-image",
	"gemini-2.0-flash-exp-image-generation",
	"gemini-2.0-flash-preview-image-generation",
}

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	LogLevel            string
	Port                string
	DatabaseURL         string
	StoragePath         string
	StorageBaseURL      string
	ImageModels         []string
	GeminiAPIKey        string
	GeminiBaseURL       string
	QwenAPIKey          string
	QwenBaseURL         string
	PromptTemplatesPath string
	RetryBackoff        time.Duration
	ProviderTimeout     time.Duration
	GenerationTimeout   time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerMin     int
	BreakerThreshold    int
	BreakerOpenTimeout  time.Duration
	CORSAllowedOrigins  []string
	PersistOutputs      bool
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		LogLevel:            strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		Port:                port,
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StoragePath:         getEnv("STORAGE_PATH", "./data/assets"),
		StorageBaseURL:      getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		ImageModels:         getEnvList("IMAGE_MODELS", DefaultImageModels),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		QwenAPIKey:          strings.TrimSpace(os.Getenv("QWEN_API_KEY")),
		QwenBaseURL:         getEnv("QWEN_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		PromptTemplatesPath: strings.TrimSpace(os.Getenv("PROMPT_TEMPLATES_PATH")),
		RetryBackoff:        time.Millisecond * time.Duration(getEnvInt("RETRY_BACKOFF_MS", 1000)),
		ProviderTimeout:     time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 120)),
		GenerationTimeout:   time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 600)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 660)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		BreakerThreshold:    getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerOpenTimeout:  time.Second * time.Duration(getEnvInt("BREAKER_OPEN_SECONDS", 30)),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		PersistOutputs:      getEnvBool("PERSIST_OUTPUTS", false),
	}

	if len(cfg.ImageModels) == 0 {
		return nil, fmt.Errorf("IMAGE_MODELS must name at least one model")
	}
	if cfg.RetryBackoff < 0 {
		return nil, fmt.Errorf("RETRY_BACKOFF_MS must be non-negative")
	}
	if cfg.BreakerThreshold < 0 {
		return nil, fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be non-negative")
	}
	if cfg.GenerationTimeout > 0 && cfg.HTTPWriteTimeout > 0 && cfg.HTTPWriteTimeout < cfg.GenerationTimeout {
		return nil, fmt.Errorf("HTTP_WRITE_TIMEOUT_SECONDS must not be shorter than GENERATION_TIMEOUT_SECONDS")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
