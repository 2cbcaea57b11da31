// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gamekeeper/gamekeeper/internal/supervisor"
)

func newFetchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [install_dir]",
		Short: "Install or update the server without launching it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fetch(cmd.Context(), positionalOverrides(args))
		},
	}
}

func (a *App) fetch(ctx context.Context, overrides map[string]any) error {
	s, err := a.openSession(ctx, overrides)
	if err != nil {
		return err
	}
	defer s.Close()

	co := supervisor.NewCoordinator()
	stopListening := co.Listen(ctx)
	defer stopListening()

	artifacts, err := s.provision(ctx, co)
	if err != nil {
		return err
	}
	if co.Requested() {
		s.logger.Info("fetch interrupted", "reason", co.Reason())
		return nil
	}

	s.logger.Info("artifacts ready", "runtime", artifacts.Runtime, "server", artifacts.Server)
	fmt.Fprintln(a.stdout, SuccessStyle.Render("✓")+" "+s.profile.Name()+" is installed in "+s.cfg.InstallDir)
	return nil
}
