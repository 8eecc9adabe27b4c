package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/placementalarm/placement-api/pkg/messaging/redis"
	"github.com/placementalarm/placement-api/pkg/worker"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Google     GoogleConfig     `mapstructure:"google"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Push       PushConfig       `mapstructure:"push"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Reminders  RemindersConfig  `mapstructure:"reminders"`
	MailSync   MailSyncConfig   `mapstructure:"mail_sync"`
	Security   SecurityConfig   `mapstructure:"security"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CronSecret   string        `mapstructure:"cron_secret" envconfig:"CRON_SECRET"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

type JWTConfig struct {
	Secret        string `mapstructure:"secret" envconfig:"JWT_SECRET"`
	RefreshSecret string `mapstructure:"refresh_secret" envconfig:"JWT_REFRESH_SECRET"`
	ExpiryHours   int    `mapstructure:"expiry_hours"`
	RefreshHours  int    `mapstructure:"refresh_hours"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// GoogleConfig holds the OAuth client used for calendar sync, drive
// import and inbox parsing. Each concern has its own redirect URI.
type GoogleConfig struct {
	ClientID            string `mapstructure:"client_id" envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret        string `mapstructure:"client_secret" envconfig:"GOOGLE_CLIENT_SECRET"`
	CalendarRedirectURI string `mapstructure:"calendar_redirect_uri" envconfig:"GOOGLE_CALENDAR_REDIRECT_URI"`
	ParsingRedirectURI  string `mapstructure:"parsing_redirect_uri" envconfig:"GOOGLE_PARSING_REDIRECT_URI"`
}

func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key" envconfig:"GEMINI_API_KEY"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
}

type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key" envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key" envconfig:"VAPID_PRIVATE_KEY"`
	Subject         string `mapstructure:"subject" envconfig:"VAPID_SUBJECT"`
}

func (c PushConfig) Enabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type StorageConfig struct {
	Bucket        string        `mapstructure:"bucket" envconfig:"S3_BUCKET"`
	Region        string        `mapstructure:"region" envconfig:"S3_REGION"`
	Endpoint      string        `mapstructure:"endpoint" envconfig:"S3_ENDPOINT"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

type RemindersConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	EncryptionKey string        `mapstructure:"encryption_key" envconfig:"TOKEN_ENCRYPTION_KEY"`
}

type MailSyncConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Domain      string        `mapstructure:"domain"`
	MaxMessages int           `mapstructure:"max_messages"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment variables win over the file for anything secret.
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 50
	}
	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 10 * time.Second
	}
	if c.Outbox.MaxAttempts == 0 {
		c.Outbox.MaxAttempts = 5
	}
	if c.Outbox.RetryDelay == 0 {
		c.Outbox.RetryDelay = 30 * time.Second
	}
	if c.Outbox.Retention == 0 {
		c.Outbox.Retention = 7 * 24 * time.Hour
	}
	if c.Outbox.CleanupInterval == 0 {
		c.Outbox.CleanupInterval = time.Hour
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash-001"
	}
	if c.Gemini.Temperature == 0 {
		c.Gemini.Temperature = 0.1
	}
	if c.Gemini.TopP == 0 {
		c.Gemini.TopP = 0.9
	}
	if c.Storage.PresignExpiry == 0 {
		c.Storage.PresignExpiry = 15 * time.Minute
	}
	if c.Reminders.SweepInterval == 0 {
		c.Reminders.SweepInterval = 10 * time.Minute
	}
	if c.Reminders.LockTTL == 0 {
		c.Reminders.LockTTL = 5 * time.Minute
	}
	if c.MailSync.Interval == 0 {
		c.MailSync.Interval = 30 * time.Minute
	}
	if c.MailSync.MaxMessages == 0 {
		c.MailSync.MaxMessages = 5
	}
	if c.MailSync.LockTTL == 0 {
		c.MailSync.LockTTL = 5 * time.Minute
	}
	if c.Monitoring.MetricsPath == "" {
		c.Monitoring.MetricsPath = "/metrics"
	}
}

func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("jwt refresh secret is required")
	}
	return nil
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:    c.BatchSize,
		PollInterval: c.PollInterval,
		MaxAttempts:  c.MaxAttempts,
		RetryDelay:   c.RetryDelay,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
