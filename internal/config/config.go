package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable, e.g. FINLOG_HTTP_PORT.
const EnvPrefix = "FINLOG"

// Config captures runtime configuration sourced from .env and environment variables.
type Config struct {
	Environment string
	Debug       bool
	HTTPPort    string
	FrontendDir string
	DataDir     string
	Timezone    string
	JWTSecret   string
	JWTTTL      time.Duration
	Database    DatabaseConfig
	Ledger      LedgerConfig
	Notify      NotifyConfig
}

// DatabaseConfig selects the gorm dialect and its DSN.
type DatabaseConfig struct {
	Driver     string
	DSN        string
	LogQueries bool
}

// LedgerConfig tunes the action-history ledger.
type LedgerConfig struct {
	// StrictUndo refuses to revert a row whose live state no longer matches
	// the record's new_data.
	StrictUndo        bool
	RetentionDays     int
	MaxRecordsPerUser int
	PruneSchedule     string
}

// NotifyConfig lists shoutrrr service URLs that receive ledger events.
type NotifyConfig struct {
	URLs []string
}

// Load reads an optional .env file and the environment, falling back to
// defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	dataDir := v.GetString("data_dir")
	dsn := v.GetString("database.dsn")
	if dsn == "" && v.GetString("database.driver") == "sqlite" {
		dsn = filepath.Join(dataDir, "finlog.db")
	}

	cfg := Config{
		Environment: v.GetString("env"),
		Debug:       v.GetBool("debug"),
		HTTPPort:    v.GetString("http_port"),
		FrontendDir: v.GetString("frontend_dir"),
		DataDir:     dataDir,
		Timezone:    v.GetString("timezone"),
		JWTSecret:   v.GetString("jwt_secret"),
		JWTTTL:      v.GetDuration("jwt_ttl"),
		Database: DatabaseConfig{
			Driver:     v.GetString("database.driver"),
			DSN:        dsn,
			LogQueries: v.GetBool("database.log_queries"),
		},
		Ledger: LedgerConfig{
			StrictUndo:        v.GetBool("ledger.strict_undo"),
			RetentionDays:     v.GetInt("ledger.retention_days"),
			MaxRecordsPerUser: v.GetInt("ledger.max_records_per_user"),
			PruneSchedule:     v.GetString("ledger.prune_schedule"),
		},
		Notify: NotifyConfig{URLs: splitList(v.GetString("notify.urls"))},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("debug", false)
	v.SetDefault("http_port", "8080")
	v.SetDefault("frontend_dir", filepath.Clean(filepath.Join("..", "frontend", "dist")))
	v.SetDefault("data_dir", "data")
	v.SetDefault("timezone", "Local")
	v.SetDefault("jwt_secret", "change-me-in-production")
	v.SetDefault("jwt_ttl", 24*time.Hour)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_queries", false)
	v.SetDefault("ledger.strict_undo", true)
	v.SetDefault("ledger.retention_days", 365)
	v.SetDefault("ledger.max_records_per_user", 5000)
	v.SetDefault("ledger.prune_schedule", "@daily")
	v.SetDefault("notify.urls", "")
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.HTTPPort); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.HTTPPort))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("invalid database driver %q: must be sqlite or postgres", c.Database.Driver))
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		problems = append(problems, "database dsn is required for postgres")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timezone %q", c.Timezone))
	}
	if c.JWTSecret == "" {
		problems = append(problems, "jwt secret must not be empty")
	}
	if c.JWTTTL <= 0 {
		problems = append(problems, "jwt ttl must be positive")
	}
	if c.Ledger.RetentionDays < 0 {
		problems = append(problems, "ledger retention days must not be negative")
	}
	if c.Ledger.MaxRecordsPerUser < 0 {
		problems = append(problems, "ledger max records per user must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the configured time zone used for calendar ranges.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
