package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Store drivers understood by LoadConfig.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	StoreDriver      string
	DatabaseURL      string
	TokenSecret      string
	TokenIssuer      string
	EnhancerProvider string
	EnhancerAPIKey   string
	EnhancerBaseURL  string
	EnhancerModel    string
	RemoverAPIKey    string
	RemoverBaseURL   string
	WorkerPoolSize   int
	QueueSize        int
	AdapterTimeout   time.Duration
	BatchPacing      time.Duration
	MaxBatchSize     int
	MaxUploadBytes   int64
	RecoverySweep    bool
	ScratchDir       string
	CORSOrigins      []string
	UploadRatePerMin int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		TokenSecret:      getEnv("TOKEN_SECRET", os.Getenv("JWT_SECRET")),
		TokenIssuer:      getEnv("TOKEN_ISSUER", "wardrobe-api"),
		EnhancerProvider: strings.ToLower(getEnv("ENHANCER_PROVIDER", "openai")),
		EnhancerAPIKey:   os.Getenv("ENHANCER_API_KEY"),
		EnhancerBaseURL:  os.Getenv("ENHANCER_BASE_URL"),
		EnhancerModel:    os.Getenv("ENHANCER_MODEL"),
		RemoverAPIKey:    os.Getenv("REMOVER_API_KEY"),
		RemoverBaseURL:   getEnv("REMOVER_BASE_URL", "https://api.remove.bg/v1.0"),
		WorkerPoolSize:   getEnvInt("WORKER_POOL_SIZE", 4),
		QueueSize:        getEnvInt("QUEUE_SIZE", 64),
		AdapterTimeout:   time.Second * time.Duration(getEnvInt("ADAPTER_TIMEOUT_SECONDS", 120)),
		BatchPacing:      time.Millisecond * time.Duration(getEnvInt("BATCH_PACING_MS", 1000)),
		MaxBatchSize:     getEnvInt("MAX_BATCH_SIZE", 20),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", 64<<20)),
		RecoverySweep:    getEnvBool("RECOVERY_SWEEP", true),
		ScratchDir:       getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "wardrobe-scratch")),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		UploadRatePerMin: getEnvInt("UPLOAD_RATE_LIMIT_PER_MINUTE", 30),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.WorkerPoolSize < 1 {
		cfg.WorkerPoolSize = 1
	}
	if cfg.QueueSize < cfg.WorkerPoolSize {
		cfg.QueueSize = cfg.WorkerPoolSize
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 120 * time.Second
	}
	if cfg.BatchPacing < 0 {
		cfg.BatchPacing = 0
	}
	if cfg.MaxBatchSize < 1 {
		cfg.MaxBatchSize = 1
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.EnhancerProvider {
	case "openai", "gemini":
	default:
		return nil, fmt.Errorf("unsupported ENHANCER_PROVIDER %q", cfg.EnhancerProvider)
	}

	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}

	return cfg, nil
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

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
