package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portwatch/internal/model"
)

// checkFlags holds the flag values for the check command.
type checkFlags struct {
	host string

	// noAliases restricts a bind check to the literal host instead of
	// every local alias.
	noAliases bool

	// expectFree turns an in-use answer into exit code 3.
	expectFree bool
}

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	flags := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check <port>",
		Short: "Report whether a port is in use",
		Long: `Report whether a TCP port is in use.

For this machine (the default host, localhost or any local address) the port
is bind-probed on every local address. For any other host a connection is
attempted.

Examples:
  portwatch check 8080
  portwatch check 5432 --host db.internal
  portwatch check 3000 --expect-free`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePort(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("host") {
				flags.host = app.cfg.Host
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), p, flags)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", "", "Host to check (default from config, 0.0.0.0)")
	cmd.Flags().BoolVar(&flags.noAliases, "no-aliases", false, "Bind-probe only the given host, not every local address")
	cmd.Flags().BoolVar(&flags.expectFree, "expect-free", false, "Exit with code 3 when the port is in use")

	return cmd
}

// checkResultJSON is the JSON output of the check command.
type checkResultJSON struct {
	Port     int    `json:"port"`
	Host     string `json:"host"`
	InUse    bool   `json:"inUse"`
	Status   string `json:"status"`
	Strategy string `json:"strategy"`
}

func runCheck(ctx context.Context, w io.Writer, p int, flags *checkFlags) error {
	// Step 1: Decide between bind and connect for this host.
	strategy, err := app.scanner.SelectStrategy(flags.host)
	if err != nil {
		return err
	}

	// Step 2: Check the port, on every local alias unless --no-aliases
	// narrows a bind check to the literal host.
	var inUse bool
	if flags.noAliases && strategy == model.StrategyBind {
		inUse, err = app.scanner.IsPortInUse(ctx, p, flags.host)
	} else {
		inUse, err = app.scanner.IsPortInUseEx(ctx, p, flags.host)
	}
	if err != nil {
		return err
	}

	// Step 3: Report the result.
	status := model.PortStatus(inUse)
	if IsJSONOutput() {
		err = printJSON(w, checkResultJSON{
			Port:     p,
			Host:     flags.host,
			InUse:    inUse,
			Status:   status.String(),
			Strategy: strategy.String(),
		})
	} else {
		_, err = fmt.Fprintf(w, "port %d on %s: %s (%s)\n", p, displayHost(flags.host), status, strategy)
	}
	if err != nil {
		return err
	}

	// Step 4: Fail with exit code 3 if the caller needed the port free.
	if inUse && flags.expectFree {
		return model.NewCLIError(model.ExitPortInUse,
			fmt.Sprintf("port %d is in use on %s", p, displayHost(flags.host)))
	}
	return nil
}

// parsePort converts a positional port argument.
func parsePort(arg string) (int, error) {
	p, err := strconv.Atoi(arg)
	if err != nil {
		return 0, model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("invalid port %q: not a number", arg))
	}
	if err := model.ValidatePort(p); err != nil {
		return 0, model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("invalid port %q", arg), err)
	}
	return p, nil
}

// displayHost renders the empty host, which means the system default bind
// address, readably.
func displayHost(host string) string {
	if host == "" {
		return `"" (default address)`
	}
	return host
}
