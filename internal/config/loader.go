// Package config loads service configuration from an optional .env file, an
// optional YAML file and EVENTBOARD_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/eventboard/internal/logging"
	"github.com/example/eventboard/internal/persistence/sqlstore"
	"github.com/example/eventboard/internal/scheduler"
)

// EnvFile is the dotenv file read from the working directory when present.
const EnvFile = ".env"

// Config captures the configuration values for the eventboard service.
type Config struct {
	HTTPPort        int           `yaml:"http_port"`
	DBDriver        string        `yaml:"db_driver"`
	DBDSN           string        `yaml:"db_dsn"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
	CleanupTimeout  time.Duration `yaml:"cleanup_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	LogLevel        string        `yaml:"log_level"`
	AdminEmail      string        `yaml:"admin_email"`
	AdminPassword   string        `yaml:"admin_password"`
	// Timezone is the IANA zone recurring events are expanded in.
	Timezone string `yaml:"timezone"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		HTTPPort:        8080,
		DBDriver:        string(sqlstore.DriverSQLite),
		DBDSN:           "eventboard.db",
		QueryTimeout:    5 * time.Second,
		CleanupSchedule: scheduler.DefaultSchedule,
		CleanupTimeout:  scheduler.DefaultTimeout,
		LogLevel:        "info",
		Timezone:        "UTC",
	}
}

// Load reads .env, then the YAML file named by EVENTBOARD_CONFIG, then the
// EVENTBOARD_* environment variables. Missing and invalid values are reported
// together.
func Load() (Config, error) {
	if err := loadDotEnv(EnvFile); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv("EVENTBOARD_CONFIG")); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if value := env("EVENTBOARD_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			invalid = append(invalid, "EVENTBOARD_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if value := env("EVENTBOARD_DB_DRIVER"); value != "" {
		cfg.DBDriver = value
	}
	if value := env("EVENTBOARD_DB_DSN"); value != "" {
		cfg.DBDSN = value
	}
	if value := env("EVENTBOARD_QUERY_TIMEOUT"); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			invalid = append(invalid, "EVENTBOARD_QUERY_TIMEOUT")
		} else {
			cfg.QueryTimeout = d
		}
	}
	if value := env("EVENTBOARD_CLEANUP_SCHEDULE"); value != "" {
		cfg.CleanupSchedule = value
	}
	if value := env("EVENTBOARD_CLEANUP_TIMEOUT"); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			invalid = append(invalid, "EVENTBOARD_CLEANUP_TIMEOUT")
		} else {
			cfg.CleanupTimeout = d
		}
	}
	if value := env("EVENTBOARD_ALLOWED_ORIGINS"); value != "" {
		cfg.AllowedOrigins = splitList(value)
	}
	if value := env("EVENTBOARD_LOG_LEVEL"); value != "" {
		cfg.LogLevel = value
	}
	if value := env("EVENTBOARD_ADMIN_EMAIL"); value != "" {
		cfg.AdminEmail = value
	}
	if value := os.Getenv("EVENTBOARD_ADMIN_PASSWORD"); value != "" {
		cfg.AdminPassword = value
	}
	if value := env("EVENTBOARD_TIMEZONE"); value != "" {
		cfg.Timezone = value
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = appendOnce(invalid, "EVENTBOARD_HTTP_PORT")
	}
	driver, err := sqlstore.ParseDriver(cfg.DBDriver)
	if err != nil {
		invalid = append(invalid, "EVENTBOARD_DB_DRIVER")
	} else {
		cfg.DBDriver = string(driver)
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		missing = append(missing, "EVENTBOARD_DB_DSN")
	}
	if cfg.QueryTimeout <= 0 {
		invalid = appendOnce(invalid, "EVENTBOARD_QUERY_TIMEOUT")
	}
	if err := scheduler.ValidateSchedule(cfg.CleanupSchedule); err != nil {
		invalid = append(invalid, "EVENTBOARD_CLEANUP_SCHEDULE")
	}
	if cfg.CleanupTimeout <= 0 {
		invalid = appendOnce(invalid, "EVENTBOARD_CLEANUP_TIMEOUT")
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		invalid = append(invalid, "EVENTBOARD_LOG_LEVEL")
	}
	if _, err := cfg.Location(); err != nil {
		invalid = append(invalid, "EVENTBOARD_TIMEZONE")
	}
	switch {
	case cfg.AdminEmail != "" && cfg.AdminPassword == "":
		missing = append(missing, "EVENTBOARD_ADMIN_PASSWORD")
	case cfg.AdminEmail == "" && cfg.AdminPassword != "":
		missing = append(missing, "EVENTBOARD_ADMIN_EMAIL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required configuration is missing: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("configuration values are invalid: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Location loads the configured zone. An empty name means UTC; "Local" is
// rejected so expansion does not depend on the host.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	switch name {
	case "":
		return time.UTC, nil
	case "Local":
		return nil, fmt.Errorf("timezone must be an IANA name, got %q", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// SeedAdmin reports whether a bootstrap administrator is configured.
func (c Config) SeedAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}

// loadDotEnv exports variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendOnce(list []string, key string) []string {
	for _, existing := range list {
		if existing == key {
			return list
		}
	}
	return append(list, key)
}
