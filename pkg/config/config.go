package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LENDAROUND"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RTO          RTOConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LENDAROUND_APP_ENV" required:"true"`
	Port         string `envconfig:"LENDAROUND_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LENDAROUND_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LENDAROUND_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"LENDAROUND_DB_DSN"`

	Host     string `envconfig:"LENDAROUND_DB_HOST"`
	Port     int    `envconfig:"LENDAROUND_DB_PORT" default:"5432"`
	User     string `envconfig:"LENDAROUND_DB_USER"`
	Password string `envconfig:"LENDAROUND_DB_PASSWORD"`
	Name     string `envconfig:"LENDAROUND_DB_NAME"`
	SSLMode  string `envconfig:"LENDAROUND_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LENDAROUND_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LENDAROUND_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LENDAROUND_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LENDAROUND_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either LENDAROUND_DB_DSN or host/user/name parts are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"LENDAROUND_REDIS_URL"`
	Address      string        `envconfig:"LENDAROUND_REDIS_ADDR"`
	Password     string        `envconfig:"LENDAROUND_REDIS_PASSWORD"`
	DB           int           `envconfig:"LENDAROUND_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LENDAROUND_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LENDAROUND_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LENDAROUND_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LENDAROUND_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LENDAROUND_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LENDAROUND_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LENDAROUND_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LENDAROUND_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RTOConfig carries the contract-engine policy knobs. The default grace
// period is a deployment decision, so it has no baked-in fallback.
type RTOConfig struct {
	DefaultGracePeriod time.Duration `envconfig:"LENDAROUND_RTO_DEFAULT_GRACE_PERIOD" required:"true"`
	CaptureTimeout     time.Duration `envconfig:"LENDAROUND_RTO_CAPTURE_TIMEOUT" default:"15s"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"LENDAROUND_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"LENDAROUND_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"LENDAROUND_SQUARE_LOCATION_ID"`
}

func (s SquareConfig) Environment() string {
	return strings.ToLower(strings.TrimSpace(s.Env))
}

type GCPConfig struct {
	ProjectID string `envconfig:"LENDAROUND_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"LENDAROUND_PUBSUB_DOMAIN_TOPIC" default:"lendaround-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LENDAROUND_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LENDAROUND_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LENDAROUND_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LENDAROUND_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"LENDAROUND_CRON_LOCK_TTL" default:"55m"`
}

// RateLimitConfig throttles each authenticated user. A zero limit disables
// the middleware entirely.
type RateLimitConfig struct {
	UserLimit  int64         `envconfig:"LENDAROUND_RATE_LIMIT_USER_LIMIT" default:"120"`
	UserWindow time.Duration `envconfig:"LENDAROUND_RATE_LIMIT_USER_WINDOW" default:"1m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LENDAROUND_AUTO_MIGRATE" default:"false"`
}
