package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portwatch/internal/model"
)

// waitFlags holds the flag values for the wait command.
type waitFlags struct {
	host      string
	closed    bool
	retry     time.Duration
	timeout   time.Duration
	noAliases bool
}

// NewWaitCommand creates the "wait" cobra command.
func NewWaitCommand() *cobra.Command {
	flags := &waitFlags{}

	cmd := &cobra.Command{
		Use:   "wait <port>",
		Short: "Wait until a port opens or closes",
		Long: `Wait until a TCP port is in use (default) or free (--closed).

The port is checked immediately, then every --retry until it reaches the
desired state or --timeout has passed since the first check. A timeout exits
with code 5. At least one check is always made, so --timeout 0 checks once.

Examples:
  portwatch wait 5432
  portwatch wait 8080 --host api.internal --timeout 30s
  portwatch wait 3000 --closed --retry 250ms`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePort(args[0])
			if err != nil {
				return err
			}
			applyWaitDefaults(cmd, flags)
			return runWait(cmd.Context(), cmd.OutOrStdout(), p, flags)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", "", "Host to watch (default from config, 0.0.0.0)")
	cmd.Flags().BoolVar(&flags.closed, "closed", false, "Wait for the port to become free instead of in use")
	cmd.Flags().DurationVar(&flags.retry, "retry", 0, "Pause between checks (default from config, 100ms)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Total time budget (default from config, 5s)")
	cmd.Flags().BoolVar(&flags.noAliases, "no-aliases", false, "Bind-probe only the given host, not every local address")

	return cmd
}

// applyWaitDefaults fills every flag the user did not set from the config.
func applyWaitDefaults(cmd *cobra.Command, flags *waitFlags) {
	f := cmd.Flags()
	cfg := app.cfg
	if !f.Changed("host") {
		flags.host = cfg.Host
	}
	if !f.Changed("retry") {
		flags.retry = cfg.RetryInterval()
	}
	if !f.Changed("timeout") {
		flags.timeout = cfg.WaitTimeout()
	}
	if !f.Changed("no-aliases") {
		flags.noAliases = !cfg.Wait.CheckAliases
	}
}

// waitResultJSON is the JSON output of the wait command.
type waitResultJSON struct {
	Port      int    `json:"port"`
	Host      string `json:"host"`
	State     string `json:"state"`
	ElapsedMs int64  `json:"elapsedMs"`
}

func runWait(ctx context.Context, w io.Writer, p int, flags *waitFlags) error {
	// Step 1: Build the wait request from the resolved flags.
	req := model.WaitRequest{
		Port:          p,
		Host:          flags.host,
		DesiredInUse:  !flags.closed,
		RetryInterval: flags.retry,
		Timeout:       flags.timeout,
		CheckAliases:  !flags.noAliases,
	}

	// Step 2: Poll until the port reaches the desired state. A timeout
	// yields a TimeoutError, which maps to exit code 5.
	start := time.Now()
	if err := app.scanner.WaitForStatus(ctx, req); err != nil {
		return err
	}
	elapsed := time.Since(start)

	// Step 3: Report the state reached and how long it took.
	state := "open"
	if flags.closed {
		state = "closed"
	}

	if IsJSONOutput() {
		return printJSON(w, waitResultJSON{
			Port:      p,
			Host:      flags.host,
			State:     state,
			ElapsedMs: elapsed.Milliseconds(),
		})
	}
	_, err := fmt.Fprintf(w, "port %d on %s is %s (after %s)\n",
		p, displayHost(flags.host), state, elapsed.Round(time.Millisecond))
	return err
}
