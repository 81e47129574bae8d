package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewAliasesCommand creates the "aliases" cobra command, which prints the
// local addresses a bind check covers.
func NewAliasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "aliases",
		Short: "List the local addresses checked for this machine",
		Long: `List the addresses a port check on this machine covers: the IPv4
wildcard 0.0.0.0, the loopback addresses 127.0.0.1 and ::1, the system
default address (shown as ""), and every IPv4 address of every network
interface.`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runAliases(cmd.OutOrStdout())
		},
	}
}

func runAliases(w io.Writer) error {
	aliases, err := app.scanner.Aliases()
	if err != nil {
		return fmt.Errorf("failed to enumerate local addresses: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(w, struct {
			Aliases []string `json:"aliases"`
		}{Aliases: aliases})
	}

	for _, a := range aliases {
		if a == "" {
			a = `""`
		}
		if _, err := fmt.Fprintln(w, a); err != nil {
			return err
		}
	}
	return nil
}
