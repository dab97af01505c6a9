// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// MaxBatchSize is the largest number of ids the catalog accepts in one
// item-detail request.
const MaxBatchSize = 20

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds inbound HTTP configuration.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" validate:"required"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required"`
	PoolSize        int           `mapstructure:"pool_size" validate:"gt=0"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// CatalogConfig holds the external catalog API configuration.
type CatalogConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	GameLinkBase string        `mapstructure:"game_link_base" validate:"required,url"`

	// Circuit breaker: open once BreakerMinRequests have been seen in
	// BreakerInterval and the failure ratio reaches BreakerFailureRatio.
	BreakerMinRequests  uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio float64       `mapstructure:"breaker_failure_ratio" validate:"gte=0,lte=1"`
	BreakerInterval     time.Duration `mapstructure:"breaker_interval"`
	BreakerOpenTimeout  time.Duration `mapstructure:"breaker_open_timeout"`
}

// PipelineConfig holds ingestion pipeline tuning.
type PipelineConfig struct {
	BatchSize  int           `mapstructure:"batch_size" validate:"gte=1,lte=20"`
	BatchDelay time.Duration `mapstructure:"batch_delay" validate:"gte=0"`
}

// ScheduleConfig holds the periodic refresh configuration.
// An empty RefreshCron disables the scheduler.
type ScheduleConfig struct {
	RefreshCron string `mapstructure:"refresh_cron"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// DSN returns the PostgreSQL connection string. Credentials and database
// name are escaped.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.New(), configPath)
}

// LoadWith is Load on a caller-provided viper instance, so that command
// line flags bound to it take precedence over file and environment values.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g., CATALOG_API_KEY, DATABASE_HOST, PIPELINE_BATCH_SIZE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by earlier deployments of the importer scripts.
	_ = v.BindEnv("catalog.base_url", "CATALOG_BASE_URL", "BGG_BASE_URL")
	_ = v.BindEnv("catalog.api_key", "CATALOG_API_KEY", "BGG_API_KEY")

	// Config file is optional: env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints declared in the validate tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", "15s")
	// A collection import runs inside the POST request.
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit_requests", 60)
	v.SetDefault("server.rate_limit_window", "1m")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "boardgames")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "board_game_suggestor")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("catalog.base_url", "https://boardgamegeek.com/xmlapi2/")
	v.SetDefault("catalog.api_key", "")
	v.SetDefault("catalog.timeout", "30s")
	v.SetDefault("catalog.min_interval", "500ms")
	v.SetDefault("catalog.game_link_base", "https://boardgamegeek.com/boardgame/")
	v.SetDefault("catalog.breaker_min_requests", 10)
	v.SetDefault("catalog.breaker_failure_ratio", 0.6)
	v.SetDefault("catalog.breaker_interval", "1m")
	v.SetDefault("catalog.breaker_open_timeout", "2m")

	v.SetDefault("pipeline.batch_size", MaxBatchSize)
	v.SetDefault("pipeline.batch_delay", "1s")

	v.SetDefault("schedule.refresh_cron", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
