// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gamekeeper/gamekeeper/internal/acquire"
	"github.com/gamekeeper/gamekeeper/internal/config"
	"github.com/gamekeeper/gamekeeper/internal/issue"
	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/metrics"
	"github.com/gamekeeper/gamekeeper/internal/provision"
	"github.com/gamekeeper/gamekeeper/internal/supervisor"
	"github.com/gamekeeper/gamekeeper/internal/tee"
)

// guideStyle renders remediation guides without terminal escapes so that
// the session log stays readable.
const guideStyle = "notty"

// session is one run of the manager: loaded config, open session log and
// the collaborators built from them.
type session struct {
	cfg     *config.Config
	verbose bool
	logFile *os.File
	out     *tee.Writer
	logger  *log.Logger
	metrics supervisor.Metrics
	profile launch.Profile
	prov    provision.Provisioner
}

// openSession loads configuration and prepares logging, metrics, the
// launch profile and the provisioner. Errors are already reported when it
// returns.
func (a *App) openSession(ctx context.Context, overrides map[string]any) (*session, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile, Overrides: overrides})
	if err != nil {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.verbose))
		return nil, &ExitError{Code: 1, Err: err}
	}
	if cfg.UserAgent == config.DefaultConfig().UserAgent {
		cfg.UserAgent = userAgent()
	}

	logFile, err := tee.OpenSessionLog(cfg.LogFile, time.Now())
	if err != nil {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+err.Error())
		return nil, &ExitError{Code: 1, Err: err}
	}

	s := &session{
		cfg:     cfg,
		verbose: a.verbose || cfg.UI.Verbose,
		logFile: logFile,
		out:     tee.New(a.stdout, logFile),
		metrics: supervisor.NoopMetrics(),
	}
	level := log.InfoLevel
	if s.verbose {
		level = log.DebugLevel
	}
	s.logger = log.NewWithOptions(s.out, log.Options{Prefix: "gamekeeper", Level: level})

	var hook acquire.AttemptHook
	if cfg.Metrics.Listen != "" {
		c := metrics.NewCollector(metrics.DefaultNamespace)
		if _, err := c.Listen(ctx, cfg.Metrics.Listen, s.logger.WithPrefix("metrics")); err != nil {
			return nil, s.abort(fmt.Errorf("starting metrics listener on %s: %w", cfg.Metrics.Listen, err))
		}
		s.metrics = c
		hook = c.Attempt
	}

	s.profile = newProfile(cfg)
	s.prov, err = a.NewProvisioner(cfg, s.profile, provision.DepsFromConfig(cfg, s.logger, s.out, hook))
	if err != nil {
		return nil, s.abort(err)
	}

	s.logger.Info("session started", "game", cfg.Game, "dir", cfg.InstallDir, "log", cfg.LogFile)
	return s, nil
}

// Close releases the session log.
func (s *session) Close() error {
	return s.logFile.Close()
}

// fatal reports err on the console and in the session log and returns the
// matching ExitError.
func (s *session) fatal(err error) error {
	fmt.Fprintln(s.out, renderFatal(err, s.verbose))
	return &ExitError{Code: 1, Err: err}
}

// abort reports a setup failure and closes the session log.
func (s *session) abort(err error) error {
	err = s.fatal(err)
	_ = s.Close()
	return err
}

func newProfile(cfg *config.Config) launch.Profile {
	if cfg.Game == config.GameRust {
		return launch.NewRust(cfg.InstallDir, cfg.Rust)
	}
	return launch.NewMinecraft(cfg.InstallDir, cfg.Minecraft)
}

// renderFatal formats err with its suggestions and, when one applies, the
// remediation guide.
func renderFatal(err error, verbose bool) string {
	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(formatErrorForDisplay(err, verbose))

	var loop *supervisor.CrashLoopError
	if errors.As(err, &loop) && len(loop.History) > 0 {
		sb.WriteString("\n\nRecent exits:\n")
		sb.WriteString(loop.Detail())
	}

	if g := issue.GetGuide(guideFor(err)); g != nil {
		if md, rerr := g.Render(guideStyle); rerr == nil {
			sb.WriteString("\n")
			sb.WriteString(md)
		} else {
			sb.WriteString("\n\n")
			sb.WriteString(g.MarkdownMsg())
		}
	}
	return sb.String()
}

func guideFor(err error) issue.GuideID {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Guide != 0 {
		return ae.Guide
	}
	if errors.Is(err, supervisor.ErrCrashLoop) {
		return issue.CrashLoopGuide
	}
	return 0
}
