package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                 string
	LogLevel            string
	HTTPAddr            string
	DatabaseURL         string
	CounterStore        string
	MongoURL            string
	MongoDatabase       string
	ReportingTimezone   string
	CounterMaxAttempts  int
	CounterOpTimeout    time.Duration
	EventBuffer         int
	EventTimeout        time.Duration
	JWTSecret           string
	ResetPinHash        string
	RabbitMQURL         string
	RabbitMQWorkerMode  string
	CorsAllowedOrigins  []string
	WSHeartbeatInterval time.Duration

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStoreKeyPrefix       string
	ObjectStoreLinkTTL         time.Duration
	ObjectStoreStorageClass    string
}

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

func Load() Config {
	cfg := Config{
		Env:                 getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", ""),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8090"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		CounterStore:        strings.ToLower(getEnv("COUNTER_STORE", StorePostgres)),
		MongoURL:            getEnv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDatabase:       getEnv("MONGO_DATABASE", "hotelpos"),
		ReportingTimezone:   getEnv("REPORTING_TIMEZONE", "Local"),
		CounterMaxAttempts:  int(getEnvInt64("COUNTER_MAX_ATTEMPTS", 3)),
		CounterOpTimeout:    getEnvDuration("COUNTER_OP_TIMEOUT", 5*time.Second),
		EventBuffer:         int(getEnvInt64("COUNTER_EVENT_BUFFER", 256)),
		EventTimeout:        getEnvDuration("COUNTER_EVENT_TIMEOUT", 5*time.Second),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		ResetPinHash:        getEnv("COUNTER_RESET_PIN_HASH", ""),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode:  getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		CorsAllowedOrigins:  splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		WSHeartbeatInterval: getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),

		// Object store (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStoreKeyPrefix:       getEnv("OBJECT_STORE_KEY_PREFIX", ""),
		ObjectStoreLinkTTL:         getEnvDuration("OBJECT_STORE_LINK_TTL", 15*time.Minute),
		ObjectStoreStorageClass:    getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
	}

	if cfg.CounterMaxAttempts <= 0 {
		cfg.CounterMaxAttempts = 3
	}
	switch cfg.CounterStore {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		cfg.CounterStore = StorePostgres
	}

	// Back-compat: allow R2_ACCOUNT_ID -> endpoint
	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(os.Getenv("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg
}

// ObjectStoreEnabled reports whether enough settings are present to archive reports.
func (c Config) ObjectStoreEnabled() bool {
	return strings.TrimSpace(c.ObjectStoreEndpoint) != "" &&
		strings.TrimSpace(c.ObjectStoreBucket) != ""
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
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
