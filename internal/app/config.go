package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PatchPath string // hcl file or directory

	// Ticks is the number of audio periods to simulate.
	Ticks int
	// Threads is the worker-pool size, driver included. 0 defers to the
	// patch's setting, then to the machine's CPU count.
	Threads int
	// Strategy overrides the patch's back-off strategy when non-empty.
	Strategy string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PatchPath == "" {
		return nil, errors.New("PatchPath is a required configuration field and cannot be empty")
	}
	if cfg.Ticks < 1 {
		return nil, errors.New("Ticks must be at least 1")
	}
	return &cfg, nil
}
