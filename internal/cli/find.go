package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portwatch/internal/model"
)

// findFlags holds the flag values for the find command. Unset flags take
// their value from the find section of the configuration.
type findFlags struct {
	min         int
	max         int
	count       int
	consecutive bool
	host        string
}

// NewFindCommand creates the "find" cobra command.
func NewFindCommand() *cobra.Command {
	flags := &findFlags{}

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find free ports in a range",
		Long: `Find free TCP ports, scanning upward from --min.

Ports are probed one at a time. With --consecutive the ports returned form a
gap-free run; an occupied port restarts the run.

Examples:
  portwatch find
  portwatch find --min 3000 --max 3999 --count 3 --consecutive
  portwatch find --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			applyFindDefaults(cmd, flags)
			return runFind(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().IntVar(&flags.min, "min", 0, "First port of the range (default from config, 49152)")
	cmd.Flags().IntVar(&flags.max, "max", 0, "Last port of the range, inclusive (default from config, 65535)")
	cmd.Flags().IntVarP(&flags.count, "count", "n", 0, "Number of ports to find (default from config, 1)")
	cmd.Flags().BoolVar(&flags.consecutive, "consecutive", false, "Require a gap-free run of ports")
	cmd.Flags().StringVar(&flags.host, "host", "", "Host to check (default from config, 0.0.0.0)")

	return cmd
}

// applyFindDefaults fills every flag the user did not set from the config.
func applyFindDefaults(cmd *cobra.Command, flags *findFlags) {
	f := cmd.Flags()
	cfg := app.cfg
	if !f.Changed("min") {
		flags.min = cfg.Find.Min
	}
	if !f.Changed("max") {
		flags.max = cfg.Find.Max
	}
	if !f.Changed("count") {
		flags.count = cfg.Find.Retrieve
	}
	if !f.Changed("consecutive") {
		flags.consecutive = cfg.Find.Consecutive
	}
	if !f.Changed("host") {
		flags.host = cfg.Host
	}
}

// findResultJSON is the JSON output of the find command.
type findResultJSON struct {
	Ports       []int  `json:"ports"`
	Host        string `json:"host"`
	Consecutive bool   `json:"consecutive"`
	Strategy    string `json:"strategy"`
	Probes      int    `json:"probes"`
}

func runFind(ctx context.Context, w io.Writer, flags *findFlags) error {
	// Step 1: Build the scan request from the resolved flags.
	req := model.FreePortRequest{
		Min:         flags.min,
		Max:         flags.max,
		Retrieve:    flags.count,
		Consecutive: flags.consecutive,
		Host:        flags.host,
	}

	// Step 2: Scan the range. An exhausted range yields an
	// InsufficientPortsError, which maps to exit code 4.
	report, err := app.scanner.ScanFreePorts(ctx, req)
	if err != nil {
		return err
	}

	// Step 3: Print the ports found.
	if IsJSONOutput() {
		return printJSON(w, findResultJSON{
			Ports:       report.Free,
			Host:        flags.host,
			Consecutive: flags.consecutive,
			Strategy:    report.Strategy.String(),
			Probes:      report.Probes,
		})
	}

	// One port per line keeps the text output easy to consume from shell
	// scripts.
	for _, p := range report.Free {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}
