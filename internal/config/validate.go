package config

import (
	"fmt"
	"time"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Bot.Timezone); err != nil {
		return fmt.Errorf("bot.timezone %q: %w", c.Bot.Timezone, err)
	}
	if c.Bot.PendingGrace <= 0 {
		return fmt.Errorf("bot.pending_grace must be > 0 (got %v)", c.Bot.PendingGrace)
	}
	if c.Bot.SweepInterval <= 0 {
		return fmt.Errorf("bot.sweep_interval must be > 0 (got %v)", c.Bot.SweepInterval)
	}
	return nil
}

// Location returns the loaded IANA zone. Validate must have succeeded first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Bot.Timezone)
	if err != nil {
		// Validate rejects unloadable zones.
		panic(fmt.Sprintf("config: timezone %q: %v", c.Bot.Timezone, err))
	}
	return loc
}
