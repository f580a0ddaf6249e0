// Package config loads the service's environment-driven configuration,
// following the teacher's internal/database config pattern: a struct with
// sane defaults, an env-loader that leaves defaults untouched on a parse
// error, and a Validate() that returns a descriptive error per field.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	taxerrors "github.com/eliadvertman/segctl/internal/errors"
	"github.com/eliadvertman/segctl/internal/logging"
)

// DatabaseConfig holds the Record Store's connection pool settings (spec §4.4, §5).
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	StaleTimeout    time.Duration `yaml:"stale_timeout"`
	AcquireTimeout  time.Duration `yaml:"acquire_timeout"`
}

// DefaultDatabaseConfig returns the documented defaults.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:           "localhost",
		Port:           5432,
		User:           "segctl_user",
		Database:       "segctl",
		SSLMode:        "disable",
		MaxConnections: 5,
		StaleTimeout:   300 * time.Second,
		AcquireTimeout: 10 * time.Second,
	}
}

// LoadFromEnv overlays DB_* environment variables, leaving the existing
// value in place whenever a variable is unset or malformed.
func (c *DatabaseConfig) LoadFromEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("DB_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConnections = n
		}
	}
	if v := os.Getenv("DB_STALE_TIMEOUT"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			c.StaleTimeout = time.Duration(d) * time.Second
		}
	}
	if v := os.Getenv("DB_CONNECTION_TIMEOUT"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			c.AcquireTimeout = time.Duration(d) * time.Second
		}
	}
}

// Validate returns a ClientMalformed-tagged error describing the first
// invalid field found, or nil.
func (c DatabaseConfig) Validate() error {
	if c.Host == "" {
		return taxerrors.New(taxerrors.KindClientMalformed, "database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return taxerrors.New(taxerrors.KindClientMalformed, "database port must be between 1 and 65535")
	}
	if c.User == "" {
		return taxerrors.New(taxerrors.KindClientMalformed, "database user is required")
	}
	if c.Database == "" {
		return taxerrors.New(taxerrors.KindClientMalformed, "database name is required")
	}
	if c.MaxConnections < 1 {
		return taxerrors.New(taxerrors.KindClientMalformed, "database max_connections must be at least 1")
	}
	return nil
}

// DSN renders a libpq-style connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// RedisConfig holds the connection settings for the Engine Host's single-leader
// lock (spec §5).
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockKey  string        `yaml:"lock_key"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// DefaultRedisConfig returns the documented defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:    "localhost:6379",
		DB:      0,
		LockKey: "segctl:engine:leader",
		LockTTL: 30 * time.Second,
	}
}

// LoadFromEnv overlays REDIS_* environment variables.
func (c *RedisConfig) LoadFromEnv() {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DB = n
		}
	}
	if v := os.Getenv("REDIS_LOCK_TTL"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			c.LockTTL = time.Duration(d) * time.Second
		}
	}
}

// Validate returns a ClientMalformed-tagged error describing the first
// invalid field found, or nil.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return taxerrors.New(taxerrors.KindClientMalformed, "redis addr is required")
	}
	if c.LockKey == "" {
		return taxerrors.New(taxerrors.KindClientMalformed, "redis lock_key is required")
	}
	if c.LockTTL <= 0 {
		return taxerrors.New(taxerrors.KindClientMalformed, "redis lock_ttl must be positive")
	}
	return nil
}

// Config is the top-level service configuration.
type Config struct {
	Database          DatabaseConfig `yaml:"database"`
	Redis             RedisConfig    `yaml:"redis"`
	PollInterval      time.Duration  `yaml:"poll_interval"`
	TemplatesDir      string         `yaml:"templates_dir"`
	Logging           logging.Config `yaml:"logging"`
	HTTPAddr          string         `yaml:"http_addr"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	SlackWebhookURL   string         `yaml:"slack_webhook_url"`
}

// Default returns the documented top-level defaults (spec §4.6: 30s poll interval).
func Default() Config {
	return Config{
		Database:           DefaultDatabaseConfig(),
		Redis:              DefaultRedisConfig(),
		PollInterval:       30 * time.Second,
		TemplatesDir:       "templates",
		Logging:            logging.DefaultConfig(),
		HTTPAddr:           ":8080",
		CORSAllowedOrigins: []string{"*"},
	}
}

// LoadFromFile overlays non-zero YAML fields from path onto the config. A
// missing file is not an error — the config keeps its current values, since
// env vars and defaults are sufficient on their own (spec §6 only documents
// env vars; the YAML file is an optional convenience layer).
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return taxerrors.Wrap(taxerrors.KindInternal, err, "reading config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return taxerrors.Wrap(taxerrors.KindClientMalformed, err, "parsing config file")
	}
	return nil
}

// LoadFromEnv overlays every documented env var (spec §6), env taking
// precedence over any value loaded from file.
func (c *Config) LoadFromEnv() {
	c.Database.LoadFromEnv()
	c.Redis.LoadFromEnv()
	if v := os.Getenv("SLURM_POLL_INTERVAL"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			c.PollInterval = time.Duration(d) * time.Second
		}
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.SlackWebhookURL = v
	}
	c.Logging.LoadFromEnv()
}

// Validate validates every sub-config.
func (c Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return taxerrors.New(taxerrors.KindClientMalformed, "poll_interval must be positive")
	}
	if c.TemplatesDir == "" {
		return taxerrors.New(taxerrors.KindClientMalformed, "templates_dir is required")
	}
	return nil
}

// Load builds a Config from (in increasing precedence) defaults, an
// optional YAML file, and the environment.
func Load(yamlPath string) (Config, error) {
	c := Default()
	if yamlPath != "" {
		if err := c.LoadFromFile(yamlPath); err != nil {
			return Config{}, err
		}
	}
	c.LoadFromEnv()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
