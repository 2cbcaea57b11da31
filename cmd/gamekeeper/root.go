// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/gamekeeper/gamekeeper/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "gamekeeper",
		Short: "Install, launch and supervise a game server",
		Long: TitleStyle.Render("gamekeeper") + SubtitleStyle.Render(" - game server supervisor") + `

gamekeeper downloads the server and its runtime, writes the server
settings, launches the server and restarts it when it crashes. It gives
up when the server crashes too often in a row.

Supported games are Rust (through DepotDownloader) and Minecraft
(Paper on a Java runtime).

` + SubtitleStyle.Render("Examples:") + `
  gamekeeper run                       Supervise using config and environment
  gamekeeper run /srv/mc 1G 4G         Minecraft with a 1G-4G heap
  gamekeeper fetch                     Install or update without launching
  gamekeeper config show               Print the effective configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/gamekeeper/config.cue)")

	root.AddCommand(newRunCommand(app))
	root.AddCommand(newFetchCommand(app))
	root.AddCommand(newConfigCommand(app))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "gamekeeper "+getVersionString())
			return err
		},
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// userAgent is sent with every HTTP request.
func userAgent() string {
	return "gamekeeper/" + Version
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, app *App) int {
	// The shutdown coordinator owns signal handling.
	err := fang.Execute(ctx, newRootCommand(app), fang.WithVersion(getVersionString()))
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// formatErrorForDisplay formats an error for user display.
// ActionableErrors use their Format method.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
