package app

import "errors"

// Config holds everything an App instance needs to run, as assembled by the
// CLI layer.
type Config struct {
	ConfigPath string // HCL pipeline configuration file

	LogFormat string
	LogLevel  string

	Force    bool // re-run units even when their outputs are complete
	DryRun   bool // print the plan without executing anything
	Stats    bool // summarize existing match artifacts instead of running
	Progress bool // render a progress bar on stderr
}

// NewConfig validates a Config assembled by the CLI layer.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("a pipeline configuration file is required")
	}
	return &cfg, nil
}
