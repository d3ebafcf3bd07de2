package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/mentorhub/internal/tracing"
)

// Config represents the runtime configuration for the MentorHub backend.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Email         EmailConfig        `mapstructure:"email"`
	Matching      MatchingConfig     `mapstructure:"matching"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Monitoring    MonitoringConfig   `mapstructure:"monitoring"`
	Tracing       tracing.Config     `mapstructure:"tracing"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds API calls per caller and route.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver       string            `mapstructure:"driver"`
	Path         string            `mapstructure:"path"`
	DSN          string            `mapstructure:"dsn"`
	Postgres     DBAuthConfig      `mapstructure:"postgres"`
	MySQL        DBAuthConfig      `mapstructure:"mysql"`
	Options      map[string]string `mapstructure:"options"`
	MaxOpenConns int               `mapstructure:"max_open_conns"`
	MaxIdleConns int               `mapstructure:"max_idle_conns"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures token validation settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"access_token_ttl"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MatchingConfig tunes request and connection input handling.
type MatchingConfig struct {
	MessageMin      int           `mapstructure:"message_min"`
	MessageMax      int           `mapstructure:"message_max"`
	ReasonMax       int           `mapstructure:"reason_max"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	PublicURL       string        `mapstructure:"public_url"`
}

// NotificationConfig controls in-app notification delivery and retention.
type NotificationConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	RetentionDays   int    `mapstructure:"retention_days"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	GaugeSchedule   string `mapstructure:"gauge_schedule"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("MENTORHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/mentorhub.sqlite")

	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("matching.message_min", 10)
	v.SetDefault("matching.message_max", 2000)
	v.SetDefault("matching.reason_max", 500)
	v.SetDefault("matching.dispatch_timeout", "15s")
	v.SetDefault("matching.public_url", "http://localhost:3000")

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.retention_days", 30)
	v.SetDefault("notifications.cleanup_schedule", "@daily")
	v.SetDefault("notifications.gauge_schedule", "@every 5m")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "3s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "mentorhub")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
