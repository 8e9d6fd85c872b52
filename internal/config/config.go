package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Analysis     AnalysisConfig
	Workflow     WorkflowConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	PingTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Development switches zap to development mode (stack traces on Warn).
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig selects outbound channels for assignment mail.
type NotificationConfig struct {
	EmailFrom    string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      bool
	WebhookURL   string
}

// AnalysisConfig points at an OpenAI-compatible chat completions endpoint.
type AnalysisConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// WorkflowConfig tunes the intake pipeline.
type WorkflowConfig struct {
	MaxRetries               int
	StepTimeoutSeconds       int
	RetryInitialMillis       int
	StepLogTTLHours          int
	ClaimTTLHours            int
	Workers                  int
	ActivationTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries := getEnvAsInt("WORKFLOW_MAX_RETRIES", 2)
	if maxRetries < 0 {
		return nil, fmt.Errorf("invalid WORKFLOW_MAX_RETRIES: %d", maxRetries)
	}

	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:               getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 redisDB,
			PingTimeoutSeconds: getEnvAsInt("REDIS_PING_TIMEOUT_SECONDS", 3),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: isDevelopment(appEnv),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 24*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			SMTPTLS:      getEnvAsBool("SMTP_TLS", true),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Analysis: AnalysisConfig{
			Endpoint:       strings.TrimRight(os.Getenv("ANALYSIS_ENDPOINT"), "/"),
			APIKey:         os.Getenv("ANALYSIS_API_KEY"),
			Model:          getEnv("ANALYSIS_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("ANALYSIS_TIMEOUT_SECONDS", 20),
		},
		Workflow: WorkflowConfig{
			MaxRetries:               maxRetries,
			StepTimeoutSeconds:       getEnvAsInt("WORKFLOW_STEP_TIMEOUT_SECONDS", 30),
			RetryInitialMillis:       getEnvAsInt("WORKFLOW_RETRY_INITIAL_MS", 500),
			StepLogTTLHours:          getEnvAsInt("WORKFLOW_STEP_LOG_TTL_HOURS", 72),
			ClaimTTLHours:            getEnvAsInt("WORKFLOW_CLAIM_TTL_HOURS", 24),
			Workers:                  getEnvAsInt("WORKFLOW_WORKERS", 4),
			ActivationTimeoutSeconds: getEnvAsInt("WORKFLOW_ACTIVATION_TIMEOUT_SECONDS", 300),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Enabled reports whether an analysis endpoint is configured.
func (a AnalysisConfig) Enabled() bool {
	return a.Endpoint != ""
}

// Timeout returns the per-request analysis timeout.
func (a AnalysisConfig) Timeout() time.Duration {
	return seconds(a.TimeoutSeconds)
}

// StepTimeout bounds a single step attempt.
func (w WorkflowConfig) StepTimeout() time.Duration {
	return seconds(w.StepTimeoutSeconds)
}

// ActivationTimeout bounds one whole activation.
func (w WorkflowConfig) ActivationTimeout() time.Duration {
	return seconds(w.ActivationTimeoutSeconds)
}

// RetryInitialInterval is the first backoff delay between step attempts.
func (w WorkflowConfig) RetryInitialInterval() time.Duration {
	if w.RetryInitialMillis <= 0 {
		return 0
	}
	return time.Duration(w.RetryInitialMillis) * time.Millisecond
}

// StepLogTTL is how long memoized step results are kept.
func (w WorkflowConfig) StepLogTTL() time.Duration {
	return hours(w.StepLogTTLHours)
}

// ClaimTTL is how long a ticket claim blocks duplicate activations.
func (w WorkflowConfig) ClaimTTL() time.Duration {
	return hours(w.ClaimTTLHours)
}

// PingTimeout bounds the startup reachability check.
func (r RedisConfig) PingTimeout() time.Duration {
	return seconds(r.PingTimeoutSeconds)
}

func isDevelopment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local":
		return true
	}
	return false
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func hours(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
