package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/dspgridgo/internal/app"
	"github.com/vk/dspgridgo/internal/sched"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("dspgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
DspGridGo - A parallel DSP task-graph scheduler benchmark.

Usage:
  dspgridgo [options] [PATCH_PATH]

Arguments:
  PATCH_PATH
    Path to a single .hcl patch file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	patchFlag := flagSet.String("patch", "", "Path to the patch file or directory.")
	pFlag := flagSet.String("p", "", "Path to the patch file or directory (shorthand).")
	ticksFlag := flagSet.Int("ticks", 256, "Number of audio periods to simulate.")
	threadsFlag := flagSet.Int("threads", 0, "Worker-pool size, driver included. 0 defers to the patch, then to the CPU count.")
	strategyFlag := flagSet.String("strategy", "", "Back-off strategy. Options: 'pause', 'yield' or 'wait'. Empty defers to the patch.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *patchFlag != "" {
		path = *patchFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Patch path determined.", "path", path)

	if path == "" {
		slog.Debug("No patch path provided, printing usage and exiting.")
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
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *strategyFlag != "" {
		if _, err := sched.ParseStrategy(strings.ToLower(*strategyFlag)); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
	}
	if *threadsFlag < 0 || *threadsFlag > sched.MaxThreadCount {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid threads: must be in [0, %d]", sched.MaxThreadCount)}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PatchPath:       path,
		Ticks:           *ticksFlag,
		Threads:         *threadsFlag,
		Strategy:        strings.ToLower(*strategyFlag),
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
