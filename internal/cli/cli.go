// Package cli parses command-line arguments into an app configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/Francii-B/Phylign-Fulgor/internal/app"
)

// ExitError is an error carrying a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns the populated app
// configuration, a boolean indicating the program should exit cleanly (help
// requested), or an ExitError for usage problems.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("phylign", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Phylign-Fulgor - two-phase sequence search across reference batches.

Usage:
  phylign [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    Path to the HCL pipeline configuration file.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the pipeline configuration file.")
	cFlag := flagSet.String("c", "", "Path to the pipeline configuration file (shorthand).")
	forceFlag := flagSet.Bool("force", false, "Re-run units even when their outputs are already complete.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print the execution plan without running anything.")
	statsFlag := flagSet.Bool("stats", false, "Summarize existing match artifacts instead of running the pipeline.")
	progressFlag := flagSet.Bool("progress", false, "Render a progress bar on stderr.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	switch {
	case *configFlag != "":
		path = *configFlag
	case *cFlag != "":
		path = *cFlag
	case flagSet.NArg() > 0:
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg, err := app.NewConfig(app.Config{
		ConfigPath: path,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
		Force:      *forceFlag,
		DryRun:     *dryRunFlag,
		Stats:      *statsFlag,
		Progress:   *progressFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}
