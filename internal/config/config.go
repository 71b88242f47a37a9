// Package config reads the server configuration from the environment (and
// an optional .env file) plus a YAML file of trading defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/atmx/daybook/internal/cloudsync"
	"github.com/atmx/daybook/internal/model"
	"github.com/atmx/daybook/internal/session"
)

// Config is the server configuration.
type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	RedisTTL      time.Duration
	LocalDBPath   string
	SyncDebounce  time.Duration
	AuthRequired  bool
	AdminEmail    string
	AdminPassword string
	LogLevel      slog.Level
	DefaultsFile  string
	Defaults      session.Config
}

// DefaultTrading is the trading setup used when no defaults file is given.
func DefaultTrading() session.Config {
	return session.Config{
		InitialBalance:      decimal.NewFromInt(1000),
		TargetMode:          model.TargetAmount,
		DailyTarget:         decimal.NewFromInt(50),
		TargetPercent:       "3",
		Payout:              "92",
		LockAfterTarget:     true,
		CarryOver:           true,
		RecalcForwardOnSave: true,
	}
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:          or(getenv("PORT"), "8080"),
		DatabaseURL:   getenv("DATABASE_URL"),
		RedisURL:      getenv("REDIS_URL"),
		LocalDBPath:   or(getenv("LOCAL_DB_PATH"), "daybook.db"),
		AdminEmail:    getenv("ADMIN_EMAIL"),
		AdminPassword: getenv("ADMIN_PASSWORD"),
		DefaultsFile:  getenv("DEFAULTS_FILE"),
	}

	var err error
	if cfg.RedisTTL, err = duration(getenv("REDIS_TTL"), 30*time.Second); err != nil {
		return Config{}, fmt.Errorf("REDIS_TTL: %w", err)
	}
	if cfg.SyncDebounce, err = duration(getenv("SYNC_DEBOUNCE"), cloudsync.DefaultDelay); err != nil {
		return Config{}, fmt.Errorf("SYNC_DEBOUNCE: %w", err)
	}
	if v := getenv("AUTH_REQUIRED"); v != "" {
		if cfg.AuthRequired, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("AUTH_REQUIRED: %w", err)
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return Config{}, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	cfg.Defaults = DefaultTrading()
	if cfg.DefaultsFile != "" {
		if cfg.Defaults, err = LoadDefaults(cfg.DefaultsFile, cfg.Defaults); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// LoadDefaults overlays the YAML file at path on base. Keys missing from the
// file keep the base value.
func LoadDefaults(path string, base session.Config) (session.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read defaults: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse defaults %s: %w", path, err)
	}
	if cfg.TargetMode != model.TargetAmount && cfg.TargetMode != model.TargetPercent {
		return base, fmt.Errorf("parse defaults %s: target_mode must be amount or percent", path)
	}
	if cfg.InitialBalance.IsNegative() {
		return base, fmt.Errorf("parse defaults %s: initial_balance must not be negative", path)
	}
	return cfg, nil
}

func or(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func duration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}
