package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultListenChannel = "campaign_rules_changed"

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr                  string `mapstructure:"addr"`
		LogLevel              string `mapstructure:"log_level"`
		LogFormat             string `mapstructure:"log_format"`
		RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`

	Rules struct {
		CaseSensitive bool `mapstructure:"case_sensitive"`
	} `mapstructure:"rules"`

	Generator struct {
		ValidatePlatformLimits bool `mapstructure:"validate_platform_limits"`
		DeduplicateAds         bool `mapstructure:"deduplicate_ads"`
		PreviewLimit           int  `mapstructure:"preview_limit"`
	} `mapstructure:"generator"`

	Sync struct {
		HistorySize     int  `mapstructure:"history_size"`
		TransactionMode bool `mapstructure:"transaction_mode"`
	} `mapstructure:"sync"`
}

// Load reads configs/application.yaml when present, then APP_* environment
// variables (APP_SERVER_ADDR, APP_POSTGRES_HOST, ...).
func Load() Config {
	cfg, err := LoadFrom("configs")
	if err != nil {
		panic(err)
	}
	return cfg
}

func LoadFrom(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("generator.validate_platform_limits", true)
	v.SetDefault("generator.deduplicate_ads", true)
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	validate(&cfg)
	return cfg, nil
}

// bindEnv registers every key so AutomaticEnv also applies to keys absent
// from the config file.
func bindEnv(v *viper.Viper) {
	for _, k := range []string{
		"server.addr", "server.log_level", "server.log_format", "server.request_timeout_seconds",
		"postgres.host", "postgres.port", "postgres.user", "postgres.password", "postgres.db_name",
		"postgres.ssl_mode", "postgres.max_open_conns", "postgres.max_idle_conns",
		"listener.channel", "listener.reconnect_seconds",
		"rules.case_sensitive",
		"generator.validate_platform_limits", "generator.deduplicate_ads", "generator.preview_limit",
		"sync.history_size", "sync.transaction_mode",
	} {
		_ = v.BindEnv(k)
	}
}

func validate(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "console"
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		c.Server.RequestTimeoutSeconds = 10
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 10
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 10
	}
	if c.Listener.Channel == "" {
		c.Listener.Channel = DefaultListenChannel
	}
	if c.Listener.ReconnectSeconds <= 0 {
		c.Listener.ReconnectSeconds = 5
	}
	if c.Generator.PreviewLimit <= 0 {
		c.Generator.PreviewLimit = 10
	}
	if c.Sync.HistorySize <= 0 {
		c.Sync.HistorySize = 10
	}
}

// PersistenceEnabled is false when no database host is configured.
func (c Config) PersistenceEnabled() bool { return c.Postgres.Host != "" }

// DSN builds a postgres URL with credentials and database name escaped.
func (c Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     net.JoinHostPort(c.Postgres.Host, strconv.Itoa(c.Postgres.Port)),
		Path:     "/" + c.Postgres.DBName,
		RawQuery: url.Values{"sslmode": {c.Postgres.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
