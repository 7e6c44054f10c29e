// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq worker and client.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// FinalizationConfig provides settings for the nightly finalization job.
type FinalizationConfig interface {
	GetFinalizeHour() int
	GetCatchupMaxDays() int
	GetLeaseDuration() time.Duration
	GetWorkerTag() string
}

// RetentionConfig provides settings for the retention purger.
type RetentionConfig interface {
	GetClientRetention() time.Duration
	GetRunRecordRetention() time.Duration
	GetPurgeBatchSize() int
	GetPurgeBatchesPerSecond() float64
}

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	FinalizeHour   int
	CatchupMaxDays int
	LeaseDuration  time.Duration
	WorkerTag      string

	ClientRetention       time.Duration
	RunRecordRetention    time.Duration
	PurgeBatchSize        int
	PurgeBatchesPerSecond float64
}

// Load reads configuration from the environment, with .env support for local
// development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	workerTag := getEnv("CRM_WORKER_TAG", "")
	if workerTag == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "worker"
		}
		workerTag = hostname
	}

	asynqConcurrency, err := intEnv("ASYNQ_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	finalizeHour, err := intEnv("CRM_FINALIZE_HOUR", 4)
	if err != nil {
		return nil, err
	}
	catchupMaxDays, err := intEnv("CRM_CATCHUP_MAX_DAYS", 7)
	if err != nil {
		return nil, err
	}
	leaseDuration, err := durationEnv("CRM_LEASE_DURATION", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	clientRetention, err := durationEnv("CRM_CLIENT_RETENTION", 3*365*24*time.Hour)
	if err != nil {
		return nil, err
	}
	runRecordRetention, err := durationEnv("CRM_RUN_RECORD_RETENTION", 90*24*time.Hour)
	if err != nil {
		return nil, err
	}
	purgeBatchSize, err := intEnv("CRM_PURGE_BATCH_SIZE", 100)
	if err != nil {
		return nil, err
	}
	purgeBatchesPerSecond, err := floatEnv("CRM_PURGE_BATCHES_PER_SECOND", 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "crm"),
		AsynqConcurrency: asynqConcurrency,

		FinalizeHour:   finalizeHour,
		CatchupMaxDays: catchupMaxDays,
		LeaseDuration:  leaseDuration,
		WorkerTag:      workerTag,

		ClientRetention:       clientRetention,
		RunRecordRetention:    runRecordRetention,
		PurgeBatchSize:        purgeBatchSize,
		PurgeBatchesPerSecond: purgeBatchesPerSecond,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.FinalizeHour < 0 || cfg.FinalizeHour > 23 {
		return nil, fmt.Errorf("CRM_FINALIZE_HOUR must be between 0 and 23")
	}
	if cfg.CatchupMaxDays < 1 {
		return nil, fmt.Errorf("CRM_CATCHUP_MAX_DAYS must be at least 1")
	}

	return cfg, nil
}

// DatabaseConfig implementation.
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation.
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation.
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation.
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// FinalizationConfig implementation.
func (c *Config) GetFinalizeHour() int            { return c.FinalizeHour }
func (c *Config) GetCatchupMaxDays() int          { return c.CatchupMaxDays }
func (c *Config) GetLeaseDuration() time.Duration { return c.LeaseDuration }
func (c *Config) GetWorkerTag() string            { return c.WorkerTag }

// RetentionConfig implementation.
func (c *Config) GetClientRetention() time.Duration    { return c.ClientRetention }
func (c *Config) GetRunRecordRetention() time.Duration { return c.RunRecordRetention }
func (c *Config) GetPurgeBatchSize() int               { return c.PurgeBatchSize }
func (c *Config) GetPurgeBatchesPerSecond() float64    { return c.PurgeBatchesPerSecond }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

// intEnv, floatEnv and durationEnv return the fallback when the variable is
// unset or blank, and fail loudly on an unparseable value. Silently swallowing
// a typo would turn it into a valid-looking zero.
func intEnv(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return parsed, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return parsed, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return parsed, nil
}
