// Package config loads server settings and rule overrides from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"meownopoly/internal/rules"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config is the process configuration. Every field reads a MEOW_ prefixed
// variable.
type Config struct {
	Addr             string        `env:"ADDR" envDefault:":3000"`
	Store            string        `env:"STORE" envDefault:"sqlite"`
	StorePath        string        `env:"STORE_PATH" envDefault:"data/sessions.db"`
	BoardPath        string        `env:"BOARD_PATH"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"json"`
	TickInterval     time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	MatchSize        int           `env:"MATCH_SIZE" envDefault:"2"`
	SessionRetention time.Duration `env:"SESSION_RETENTION" envDefault:"30m"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	StartingCash       int           `env:"STARTING_CASH" envDefault:"2000"`
	TurnDuration       time.Duration `env:"TURN_DURATION" envDefault:"40s"`
	JailFine           int           `env:"JAIL_FINE" envDefault:"50"`
	GoSalary           int           `env:"GO_SALARY" envDefault:"200"`
	TimeoutPenaltyStep int           `env:"TIMEOUT_PENALTY_STEP" envDefault:"50"`
	DoubleRentOnSet    bool          `env:"DOUBLE_RENT_ON_SET" envDefault:"true"`
	JailBlocksRent     bool          `env:"JAIL_BLOCKS_RENT" envDefault:"true"`
}

// Parse reads the configuration from the process environment.
func Parse() (Config, error) {
	return ParseWith(env.Options{Prefix: "MEOW_"})
}

// ParseWith reads the configuration using opts, letting callers supply an
// explicit environment.
func ParseWith(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("MEOW_ADDR is required")
	case c.Store != StoreSQLite && c.Store != StoreMemory:
		return fmt.Errorf("MEOW_STORE must be %q or %q", StoreSQLite, StoreMemory)
	case c.TickInterval <= 0:
		return fmt.Errorf("MEOW_TICK_INTERVAL must be positive")
	case c.MatchSize < 2:
		return fmt.Errorf("MEOW_MATCH_SIZE must be at least 2")
	case c.TurnDuration <= 0:
		return fmt.Errorf("MEOW_TURN_DURATION must be positive")
	case c.StartingCash <= 0:
		return fmt.Errorf("MEOW_STARTING_CASH must be positive")
	case c.JailFine < 0 || c.GoSalary < 0 || c.TimeoutPenaltyStep < 0:
		return fmt.Errorf("fines, salary and penalties cannot be negative")
	}
	return nil
}

// Rules applies the overrides on top of the classic preset.
func (c Config) Rules() rules.Rules {
	r := rules.Classic()
	r.StartingCash = c.StartingCash
	r.TurnDuration = c.TurnDuration
	r.JailFine = c.JailFine
	r.GoSalary = c.GoSalary
	r.TimeoutPenaltyStep = c.TimeoutPenaltyStep
	r.DoubleRentOnSet = c.DoubleRentOnSet
	r.JailBlocksRent = c.JailBlocksRent
	return r
}
