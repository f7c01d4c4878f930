package config

import "time"

// APIConfig holds runtime configuration for the platform API service.
type APIConfig struct {
	Environment          string
	Addr                 string
	DatabaseURL          string
	MigrationsDir        string
	JWTSecret            string
	CronSecret           string
	GatewayIngestToken   string
	NotifyWebhookURL     string
	NotifyWebhookSecret  string
	NotifyWebhookTimeout time.Duration
	SLAComputeInterval   time.Duration
	SLAEvalTimeout       time.Duration
	RequestLogFetchLimit int
	RateLimitRedisAddr   string
	RateLimitRedisPass   string
	RateLimitRedisDB     int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:          GetString("APP_ENV", "development"),
		Addr:                 GetString("API_ADDR", ":4000"),
		DatabaseURL:          GetString("DATABASE_URL", "postgres://kinetic:kinetic@db:5432/kinetic?sslmode=disable"),
		MigrationsDir:        GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:            GetString("JWT_SECRET", "supersecuresecret"),
		CronSecret:           GetString("CRON_SECRET", ""),
		GatewayIngestToken:   GetString("GATEWAY_INGEST_TOKEN", ""),
		NotifyWebhookURL:     GetString("NOTIFY_WEBHOOK_URL", ""),
		NotifyWebhookSecret:  GetString("NOTIFY_WEBHOOK_SECRET", ""),
		NotifyWebhookTimeout: time.Duration(GetInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 5)) * time.Second,
		SLAComputeInterval:   time.Duration(GetInt("SLA_COMPUTE_INTERVAL_MINUTES", 0)) * time.Minute,
		SLAEvalTimeout:       time.Duration(GetInt("SLA_EVAL_TIMEOUT_SECONDS", 30)) * time.Second,
		RequestLogFetchLimit: GetInt("REQUEST_LOG_FETCH_LIMIT", 50000),
		RateLimitRedisAddr:   GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:   GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:     GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
