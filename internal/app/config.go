package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Environment names recognised by server.environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the runtime configuration for the VisiControl API.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Monitoring    MonitoringConfig   `mapstructure:"monitoring"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Email         EmailConfig        `mapstructure:"email"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	LogLevel    string   `mapstructure:"log_level"`
	Environment string   `mapstructure:"environment"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	BaseURL     string   `mapstructure:"base_url"`
}

// IsProduction reports whether the server runs with environment=production.
func (c ServerConfig) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvProduction)
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
	Pool     PoolConfig   `mapstructure:"pool"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// PoolConfig bounds the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MonitoringConfig enables metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT           JWTSettings       `mapstructure:"jwt"`
	ResetTokenTTL time.Duration     `mapstructure:"reset_token_ttl"`
	RateLimit     RateLimitSettings `mapstructure:"rate_limit"`
	SeedAdmin     SeedAdminSettings `mapstructure:"seed_admin"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// RateLimitSettings bounds login and password reset attempts per client.
type RateLimitSettings struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// SeedAdminSettings describes the administrator created on first start.
type SeedAdminSettings struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	LastName string `mapstructure:"last_name"`
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

// NotificationConfig tunes listing, live delivery and the reminder job.
type NotificationConfig struct {
	DefaultLimit         int           `mapstructure:"default_limit"`
	MaxLimit             int           `mapstructure:"max_limit"`
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`
	SendBuffer           int           `mapstructure:"send_buffer"`
	ReminderSchedule     string        `mapstructure:"reminder_schedule"`
	ReminderTimeout      time.Duration `mapstructure:"reminder_timeout"`
	TokenCleanupSchedule string        `mapstructure:"token_cleanup_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("VISICONTROL")
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
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.base_url", "http://localhost:5173")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/visicontrol.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.host", "127.0.0.1")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "visicontrol")
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.host", "127.0.0.1")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "visicontrol")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.pool.max_open_conns", 10)
	v.SetDefault("database.pool.max_idle_conns", 5)
	v.SetDefault("database.pool.conn_max_lifetime", "30m")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "visicontrol")
	v.SetDefault("auth.jwt.access_token_ttl", "8h")
	v.SetDefault("auth.reset_token_ttl", "1h")
	v.SetDefault("auth.rate_limit.requests", 10)
	v.SetDefault("auth.rate_limit.window", "1m")
	v.SetDefault("auth.seed_admin.email", "")
	v.SetDefault("auth.seed_admin.password", "")
	v.SetDefault("auth.seed_admin.name", "Administrador")
	v.SetDefault("auth.seed_admin.last_name", "")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("notifications.default_limit", 50)
	v.SetDefault("notifications.max_limit", 200)
	v.SetDefault("notifications.heartbeat_interval", "25s")
	v.SetDefault("notifications.send_buffer", 32)
	v.SetDefault("notifications.reminder_schedule", "@every 1h")
	v.SetDefault("notifications.reminder_timeout", "2m")
	v.SetDefault("notifications.token_cleanup_schedule", "@daily")
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
