// Package cli implements the cobra-based CLI commands for portwatch.
//
// Each subcommand (check, find, wait, aliases) is defined in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands, handles global flags, and builds the
// shared Scanner once the configuration is known.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/shinji-kodama/portwatch/internal/config"
	"github.com/shinji-kodama/portwatch/internal/logging"
	"github.com/shinji-kodama/portwatch/internal/model"
	"github.com/shinji-kodama/portwatch/internal/port"
	"github.com/shinji-kodama/portwatch/internal/tcpcheck"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON format for machine consumption.
	// When false (default), output uses human-readable text format.
	jsonOutput bool

	// verbose lowers the log level to debug, which prints one line per
	// probe to stderr.
	verbose bool

	// configPath is the --config flag. Empty means $PORTWATCH_CONFIG, or
	// no file at all.
	configPath string

	// forceConnect is the --force-connect flag. It only overrides the
	// configuration when given explicitly.
	forceConnect bool

	// logFormat and logFile override the log section of the configuration.
	logFormat string
	logFile   string

	// showStats prints a probe summary to stderr after a successful command.
	showStats bool
)

// Version, Commit and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// environment is everything a subcommand needs, built by setup before the
// subcommand runs.
type environment struct {
	cfg     *config.Config
	logger  *logrus.Logger
	scanner *port.Scanner

	// reader collects the probe metrics for --stats.
	reader *sdkmetric.ManualReader
}

// app is the environment of the command currently executing.
var app *environment

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action. It provides help
// text, global flags, and the PersistentPreRunE hook that loads the
// configuration before any subcommand runs.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		// Use is the one-line usage pattern shown in help output.
		Use:   "portwatch",
		Short: "Check, find and wait for TCP ports",
		Long: `portwatch tells whether a TCP port is in use, finds free ports in a range,
and waits until a port opens or closes.

Ports on this machine are checked by trying to bind them on every local
address, which also catches listeners bound to a single interface. Ports on
other hosts are checked by connecting to them.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Clear the previous command's environment first, so a failed
			// setup never leaves a stale one behind for Execute.
			app = nil
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			app = env
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if showStats && app != nil {
				return printStats(cmd.Context(), cmd.ErrOrStderr(), app.reader)
			}
			return nil
		},
	}

	// PersistentFlags are inherited by all subcommands. This is the cobra
	// mechanism for global flags: any flag defined here is automatically
	// available in every subcommand without re-declaration.
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (debug logging)")
	flags.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file (default: $"+config.EnvConfigPath+")")
	flags.BoolVar(&forceConnect, "force-connect", false, "Check every host by connecting, even local ones")
	flags.StringVar(&logFormat, "log-format", "", "Log format: text or json (default from config)")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	flags.BoolVar(&showStats, "stats", false, "Print a probe summary to stderr when done")

	// Register subcommands. Each subcommand is defined in its own file
	// (check.go, find.go, etc.) and returns a *cobra.Command.
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewFindCommand())
	rootCmd.AddCommand(NewWaitCommand())
	rootCmd.AddCommand(NewAliasesCommand())

	return rootCmd
}

// setup loads the configuration, applies the global flags on top of it,
// and builds the logger and Scanner for the subcommand.
func setup(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("force-connect") {
		cfg.ForceConnect = forceConnect
	}
	if verbose {
		cfg.Log.Level = logrus.DebugLevel.String()
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if logFile != "" {
		cfg.Log.Output = "file"
		cfg.Log.File = logFile
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "invalid log configuration", err)
	}
	if cfg.Log.Output == "stderr" {
		logger.SetOutput(cmd.ErrOrStderr())
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := port.NewMetrics(provider.Meter(port.MeterName))
	if err != nil {
		return nil, err
	}

	scanner := port.NewScanner(
		port.WithLogger(logger),
		port.WithMetrics(metrics),
		port.WithConnectProber(tcpcheck.New(cfg.ConnectTimeout())),
		port.WithForceConnect(cfg.ForceConnect),
	)

	logger.WithFields(logrus.Fields{
		"config":       configPath,
		"host":         cfg.Host,
		"forceConnect": cfg.ForceConnect,
	}).Debug("configuration loaded")

	return &environment{cfg: cfg, logger: logger, scanner: scanner, reader: reader}, nil
}

// Execute runs the root command with ctx and returns the process exit
// code. This is the main entry point called from main.go.
//
// Errors returned by cobra commands are printed in the format selected by
// --json and translated into exit codes by exitCodeFor.
func Execute(ctx context.Context, rootCmd *cobra.Command) model.ExitCode {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return model.ExitSuccess
	}

	code := exitCodeFor(err)
	if code == model.ExitUnexpectedBind && app != nil {
		app.logger.WithError(err).Error("bind probe failed unexpectedly")
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(rootCmd.ErrOrStderr(), cliErr.Message, cliErr.Err)
	} else {
		printError(rootCmd.ErrOrStderr(), err.Error(), nil)
	}
	return code
}

// exitCodeFor maps an error to the exit code documented for it. CLIError
// types carry their own exit codes; library errors are recognized by type;
// everything else is a general error.
func exitCodeFor(err error) model.ExitCode {
	var (
		cliErr       *model.CLIError
		insufficient *model.InsufficientPortsError
		bindErr      *model.UnexpectedBindError
	)
	switch {
	case err == nil:
		return model.ExitSuccess
	case errors.As(err, &cliErr):
		return cliErr.Code
	case errors.Is(err, model.ErrTimeout):
		return model.ExitTimeout
	case errors.As(err, &insufficient):
		return model.ExitInsufficientPorts
	case errors.As(err, &bindErr):
		return model.ExitUnexpectedBind
	default:
		return model.ExitGeneralError
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode, because stdout is
		// reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		_, _ = fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		_, _ = fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
