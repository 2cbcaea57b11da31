// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/supervisor"
)

// positionalKeys maps run's positional arguments to config keys.
var positionalKeys = []string{
	"install_dir",
	"minecraft.mem_min",
	"minecraft.mem_max",
	"minecraft.jar_url",
}

func newRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run [install_dir [mem_min [mem_max [jar_url]]]]",
		Short: "Install, launch and supervise the server",
		Long: `Install or update the server, launch it and restart it after exits.

Restarts stop when the server crashes within the fast-crash uptime too
many times in a row, or exits with an error too many times in a row.
SIGINT and SIGTERM stop the server gracefully and exit with status 0.`,
		Args: cobra.MaximumNArgs(len(positionalKeys)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runServer(cmd.Context(), positionalOverrides(args))
		},
	}
}

// positionalOverrides turns the positional arguments into config overrides.
func positionalOverrides(args []string) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for i, arg := range args {
		if arg != "" {
			out[positionalKeys[i]] = arg
		}
	}
	return out
}

// runServer provisions, launches and supervises until shutdown or a crash loop.
func (a *App) runServer(ctx context.Context, overrides map[string]any) error {
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
		s.logger.Info("shutdown requested before launch", "reason", co.Reason())
		return nil
	}

	ip := a.LookupIP(ctx, s.cfg)
	if ip == "" {
		ip = launch.PlaceholderIP
	}
	s.logger.Info("join address", "addr", launch.JoinAddress(ip, s.profile.Port()))

	sc := s.cfg.Supervisor
	sup := supervisor.New(s.profile, artifacts,
		supervisor.WithPolicy(supervisor.Policy{
			FastCrashUptime: sc.FastCrashUptime,
			MaxFastCrashes:  sc.MaxFastCrashes,
			MaxCrashes:      sc.MaxCrashes,
		}),
		supervisor.WithRestartDelay(sc.RestartDelay),
		supervisor.WithShutdownGrace(sc.ShutdownGrace),
		supervisor.WithSpawner(a.Spawner),
		supervisor.WithLogger(s.logger.WithPrefix("supervisor")),
		supervisor.WithOutput(s.out),
		supervisor.WithUpdater(s.prov),
		supervisor.WithMetrics(s.metrics),
		supervisor.WithPublicIP(ip),
	)

	if err := sup.Run(ctx, co); err != nil {
		return s.fatal(err)
	}
	s.logger.Info("shutdown complete", "reason", co.Reason(), "launches", sup.Launches())
	return nil
}

// provision runs the first install. A shutdown request cancels it and is
// not reported as a failure.
func (s *session) provision(ctx context.Context, co *supervisor.Coordinator) (launch.Artifacts, error) {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-co.Done():
			cancel()
		case <-pctx.Done():
		}
	}()

	artifacts, err := s.prov.Prepare(pctx)
	if err != nil {
		if co.Requested() {
			return launch.Artifacts{}, nil
		}
		return launch.Artifacts{}, s.fatal(err)
	}
	return artifacts, nil
}
