/*
Package config loads server settings from the environment.

SOURCES (later wins):
  1. Defaults in the struct tags
  2. .env in the working directory, if present (godotenv)
  3. Process environment, prefixed LEAVE_ (envconfig)
  4. Command-line flags in cmd/server (-port, -db)

VARIABLES:
  LEAVE_PORT            HTTP port (8080)
  LEAVE_DB_DRIVER       sqlite | gorm (sqlite)
  LEAVE_DB_PATH         SQLite file for the sqlite driver (leave.db)
  LEAVE_DATABASE_URL    DSN for the gorm driver; postgres:// selects PostgreSQL
  LEAVE_TIMEZONE        Zone that decides "today" (Asia/Bangkok)
  LEAVE_HISTORY_STRICT  Fail mutations whose history write fails (false)
  LEAVE_CORS_ORIGINS    Comma-separated allowed origins
  LEAVE_PDF_FONT_PATH   UTF-8 TTF used for Thai text in PDFs
  LEAVE_DEMO            Mount the demo scenario endpoints (false)
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverSQLite = "sqlite"
	DriverGorm   = "gorm"
)

type Config struct {
	Port          int      `envconfig:"PORT" default:"8080"`
	DBDriver      string   `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath        string   `envconfig:"DB_PATH" default:"leave.db"`
	DatabaseURL   string   `envconfig:"DATABASE_URL"`
	Timezone      string   `envconfig:"TIMEZONE" default:"Asia/Bangkok"`
	HistoryStrict bool     `envconfig:"HISTORY_STRICT" default:"false"`
	CORSOrigins   []string `envconfig:"CORS_ORIGINS"`
	PDFFontPath   string   `envconfig:"PDF_FONT_PATH"`
	Demo          bool     `envconfig:"DEMO" default:"false"`
}

// Load reads an optional .env file and then the LEAVE_* environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the LEAVE_* environment without touching .env.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("LEAVE", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverGorm:
		if c.DatabaseURL == "" {
			return errors.New("LEAVE_DATABASE_URL is required for the gorm driver")
		}
	default:
		return fmt.Errorf("unknown LEAVE_DB_DRIVER %q (use sqlite or gorm)", c.DBDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid LEAVE_PORT %d", c.Port)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid LEAVE_TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location is the configured zone; Validate has already checked it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
