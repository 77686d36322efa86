// Package cli parses the orchestrator's command-line arguments into an
// app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/vk/monogrid/internal/app"
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

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("monogrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
monogrid - an incremental monorepo build orchestrator.

Usage:
  monogrid [options] [REPO_ROOT]

Arguments:
  REPO_ROOT
    Workspace root to scan for packages. Defaults to the current directory.

Options:
`)
		flagSet.PrintDefaults()
	}

	rootFlag := flagSet.String("root", "", "Workspace root to scan for packages.")
	pipelineFlag := flagSet.String("pipeline", "monogrid.hcl", "Path to the pipeline file, relative to the workspace root unless absolute.")
	taskFlag := flagSet.String("task", "", "Comma-separated task names to run (with their dependencies). Empty runs everything.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Evaluate staleness and print the plan without executing.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 0, "Worker count override. 0 uses the pipeline's pool settings.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	root := "."
	if *rootFlag != "" {
		root = *rootFlag
	} else if flagSet.NArg() > 0 {
		root = flagSet.Arg(0)
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

	if *workersFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid workers: must not be negative"}
	}

	var filter []string
	for _, name := range strings.Split(*taskFlag, ",") {
		if name = strings.TrimSpace(name); name != "" {
			filter = append(filter, name)
		}
	}

	pipeline := *pipelineFlag
	if !filepath.IsAbs(pipeline) {
		pipeline = filepath.Join(root, pipeline)
	}

	config, err := app.NewConfig(app.Config{
		RepoRoot:     root,
		PipelinePath: pipeline,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		WorkerCount:  *workersFlag,
		TaskFilter:   filter,
		DryRun:       *dryRunFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
