package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/snipweave/internal/app"
	"github.com/vk/snipweave/internal/vars"
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
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("snipweave", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
SnipWeave - a snippet dependency resolution and expansion engine.

Usage:
  snipweave [options] REFERENCE

Arguments:
  REFERENCE
    The snippet to expand: a trigger like /sig, or a full
    collection:trigger:id reference like work:/sig:sig-1.

Options:
`)
		flagSet.PrintDefaults()
	}

	pathFlag := flagSet.String("path", "collections", "Path to a .hcl collection file or a directory of them.")
	pFlag := flagSet.String("p", "", "Path to a .hcl collection file or a directory (shorthand).")
	collectionsFlag := flagSet.String("collections", "", "Comma-separated collection names reachable during lookup.")
	cFlag := flagSet.String("c", "", "Comma-separated reachable collection names (shorthand).")
	modeFlag := flagSet.String("mode", "default", "Variable fallback mode. Options: 'prompt', 'default', 'context', or 'interactive'.")
	storeFlag := flagSet.String("store", "registry", "Store backend. Options: 'registry', 'sqlite', or 'remote'.")
	dbFlag := flagSet.String("db", "", "SQLite database path for the sqlite store.")
	endpointFlag := flagSet.String("endpoint", "", "Base URL for the remote store.")
	maxDepthFlag := flagSet.Int("max-depth", 0, "Maximum resolution depth. 0 uses the collection settings.")
	maxParallelFlag := flagSet.Int("max-parallel", 0, "Maximum parallel resolutions. 0 uses the collection settings.")
	timeoutFlag := flagSet.Int("timeout-ms", 0, "Expansion timeout in milliseconds. 0 uses the collection settings.")
	noCacheFlag := flagSet.Bool("no-cache", false, "Disable the expansion cache.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	opsPortFlag := flagSet.Int("ops-port", 0, "Port for the HTTP ops server (health + metrics). 0 is disabled.")
	watchFlag := flagSet.Bool("watch", false, "Watch the collections path and re-expand on changes.")

	values := make(map[string]string)
	flagSet.Func("var", "Bind a variable as name=value. Repeatable.", func(s string) error {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return fmt.Errorf("expected name=value, got %q", s)
		}
		values[name] = value
		return nil
	})

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	reference := ""
	if flagSet.NArg() > 0 {
		reference = flagSet.Arg(0)
	}
	slog.Debug("Reference determined.", "reference", reference)

	if reference == "" {
		slog.Debug("No reference provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	path := *pathFlag
	if *pFlag != "" {
		path = *pFlag
	}

	reachable := splitNames(*collectionsFlag)
	if len(reachable) == 0 {
		reachable = splitNames(*cFlag)
	}

	if _, err := vars.ParseMode(*modeFlag); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
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
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		CollectionsPath: path,
		Reference:       reference,
		Collections:     reachable,
		Values:          values,
		Mode:            *modeFlag,
		StoreKind:       strings.ToLower(*storeFlag),
		DBPath:          *dbFlag,
		Endpoint:        *endpointFlag,
		MaxDepth:        *maxDepthFlag,
		MaxParallel:     *maxParallelFlag,
		TimeoutMS:       *timeoutFlag,
		NoCache:         *noCacheFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		OpsPort:         *opsPortFlag,
		Watch:           *watchFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// splitNames parses a comma-separated list, dropping empty entries.
func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
