// Package main is the entry point for the portwatch CLI.
//
// It delegates all functionality to the internal/cli package, which
// defines the cobra commands. An interrupt or SIGTERM cancels the command
// context, which ends a running wait early.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release process. During development, they default to "dev",
// "none", and "unknown" respectively.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shinji-kodama/portwatch/internal/cli"
)

// version, commit, and date are set at build time via ldflags. They
// provide binary identification for the --version flag output.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Inject build-time version info into the CLI package.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewRootCommand())
	stop()
	os.Exit(int(code))
}
