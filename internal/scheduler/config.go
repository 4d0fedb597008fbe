package scheduler

import (
	"time"

	"github.com/smallbiznis/procura/internal/config"
)

// Config controls how often jobs run and how much each run may touch.
type Config struct {
	Enabled    bool
	Interval   time.Duration
	JobTimeout time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Interval:   time.Minute,
		JobTimeout: 30 * time.Second,
		StaleAfter: 15 * time.Minute,
		BatchSize:  50,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:    cfg.Scheduler.Enabled,
		Interval:   cfg.Scheduler.Interval,
		StaleAfter: cfg.Scheduler.StaleAfter,
		BatchSize:  cfg.Scheduler.BatchSize,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
