// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gamekeeper/gamekeeper/internal/config"
)

// newConfigCommand creates the `gamekeeper config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect gamekeeper configuration",
		Long: `Inspect gamekeeper configuration.

Configuration is read from, in order:
  - the file given with --config
  - $XDG_CONFIG_HOME/gamekeeper/config.cue (Linux)
    ~/Library/Application Support/gamekeeper/config.cue (macOS)
    %APPDATA%\gamekeeper\config.cue (Windows)
  - ./gamekeeper.cue

GAMEKEEPER_* and panel variables such as SERVER_PORT override the file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.cfgFile})
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return err
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.LoadWithSource(cmd.Context(), config.LoadOptions{ConfigFilePath: app.cfgFile})
			if err != nil {
				return err
			}
			path := loaded.Path
			if path == "" {
				path = "(none, using defaults)"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	})

	return cfgCmd
}
