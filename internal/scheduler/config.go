package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/audiostore/internal/config"
)

// Config controls the sweep cadence and batch sizes.
type Config struct {
	Enabled       bool
	RunInterval   time.Duration
	BatchSize     int
	PendingTTL    time.Duration
	JobTimeout    time.Duration
	LockTTL       time.Duration
	LockKeyPrefix string
	EnabledJobs   []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		RunInterval:   10 * time.Minute,
		BatchSize:     100,
		PendingTTL:    24 * time.Hour,
		JobTimeout:    time.Minute,
		LockTTL:       5 * time.Minute,
		LockKeyPrefix: "audiostore:scheduler:",
	}
}

func ProvideConfig(cfg config.Config) Config {
	sweep := cfg.Sweep
	return Config{
		Enabled:       sweep.Enabled,
		RunInterval:   sweep.Interval,
		BatchSize:     sweep.BatchSize,
		PendingTTL:    sweep.PendingTTL,
		JobTimeout:    sweep.JobTimeout,
		LockTTL:       sweep.LockTTL,
		LockKeyPrefix: sweep.LockKeyPrefix,
		EnabledJobs:   sweep.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = defaults.PendingTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if strings.TrimSpace(c.LockKeyPrefix) == "" {
		c.LockKeyPrefix = defaults.LockKeyPrefix
	}
	return c
}
