// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/gamekeeper/gamekeeper/internal/acquire"
	"github.com/gamekeeper/gamekeeper/internal/config"
	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/platform"
	"github.com/gamekeeper/gamekeeper/internal/store"
)

type (
	// Provisioner installs the artifacts for one profile.
	Provisioner interface {
		// Prepare runs before the first launch. Its errors are fatal.
		Prepare(ctx context.Context) (launch.Artifacts, error)
		// Update runs before every restart. Callers keep the previous
		// artifacts when it fails.
		Update(ctx context.Context) (launch.Artifacts, error)
	}

	// Deps are the shared collaborators of every provisioner.
	Deps struct {
		Acquirer *acquire.Acquirer
		Store    *store.Store
		GitHub   *acquire.GitHubClient
		Paper    *acquire.PaperClient
		Logger   *log.Logger
		// Output receives tool output such as DepotDownloader progress.
		Output io.Writer
		// Memory reads host memory for the JRE auto-install decision.
		Memory func(ctx context.Context) (platform.MemoryStats, error)
		// LookPath finds executables on PATH.
		LookPath func(file string) (string, error)
		// Runner runs helper tools to completion.
		Runner Runner
		// GOOS and GOARCH select platform-specific assets.
		GOOS   string
		GOARCH string
	}
)

// DepsFromConfig builds Deps with real collaborators from cfg.
func DepsFromConfig(cfg *config.Config, logger *log.Logger, output io.Writer, hook acquire.AttemptHook) Deps {
	httpClient := &http.Client{}
	return Deps{
		Acquirer: acquire.New(
			acquire.WithHTTPClient(httpClient),
			acquire.WithUserAgent(cfg.UserAgent),
			acquire.WithFetchTimeout(cfg.Acquire.FetchTimeout),
			acquire.WithLogger(logger.WithPrefix("acquire")),
			acquire.WithAttemptHook(hook),
		),
		Store: store.Open(cfg.CacheDir, store.WithLogger(logger.WithPrefix("store"))),
		GitHub: acquire.NewGitHubClient(
			acquire.WithGitHubHTTPClient(&http.Client{Timeout: cfg.Acquire.MetadataTimeout}),
			acquire.WithGitHubBaseURL(cfg.Acquire.GitHubAPI),
			acquire.WithGitHubToken(cfg.Acquire.GitHubToken),
			acquire.WithGitHubUserAgent(cfg.UserAgent),
		),
		Paper: acquire.NewPaperClient(
			acquire.WithPaperBaseURL(cfg.Acquire.PaperAPI),
			acquire.WithPaperUserAgent(cfg.UserAgent),
			acquire.WithPaperTimeout(cfg.Acquire.MetadataTimeout),
		),
		Logger: logger.WithPrefix("provision"),
		Output: output,
	}
}

// New returns the provisioner for cfg.Game.
func New(cfg *config.Config, profile launch.Profile, deps Deps) (Provisioner, error) {
	deps = deps.withDefaults()
	switch cfg.Game {
	case config.GameRust:
		rp, ok := profile.(*launch.Rust)
		if !ok {
			return nil, fmt.Errorf("rust provisioner needs a rust profile, got %s", profile.Name())
		}
		return NewRust(cfg, rp, deps), nil
	case config.GameMinecraft:
		mp, ok := profile.(*launch.Minecraft)
		if !ok {
			return nil, fmt.Errorf("minecraft provisioner needs a minecraft profile, got %s", profile.Name())
		}
		return NewMinecraft(cfg, mp, deps), nil
	default:
		return nil, fmt.Errorf("unknown game %q", cfg.Game)
	}
}

func (d Deps) withDefaults() Deps {
	if d.Acquirer == nil {
		d.Acquirer = acquire.New()
	}
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	if d.Output == nil {
		d.Output = io.Discard
	}
	if d.Memory == nil {
		d.Memory = platform.HostMemory
	}
	if d.LookPath == nil {
		d.LookPath = exec.LookPath
	}
	if d.Runner == nil {
		d.Runner = ExecRunner{}
	}
	if d.GOOS == "" {
		d.GOOS = runtime.GOOS
	}
	if d.GOARCH == "" {
		d.GOARCH = runtime.GOARCH
	}
	if d.GitHub == nil {
		d.GitHub = acquire.NewGitHubClient()
	}
	if d.Paper == nil {
		d.Paper = acquire.NewPaperClient()
	}
	return d
}

// cached returns the store entry for name when its path still exists.
func (d Deps) cached(name string) (string, bool) {
	if d.Store == nil {
		return "", false
	}
	return d.Store.Resolve(name)
}

// commit records a fresh artifact. A failed commit only costs a
// re-download on the next run, so it is logged and otherwise ignored.
func (d Deps) commit(name, path, source string) {
	if d.Store == nil {
		return
	}
	if err := d.Store.Commit(name, path, source); err != nil {
		d.Logger.Warn("could not record artifact; future restarts will download it again",
			"artifact", name, "err", err)
	}
}

// acquire runs the candidates and commits the result.
func (d Deps) acquire(ctx context.Context, target acquire.Target, candidates []acquire.Candidate, dest string) (string, error) {
	inst, err := d.Acquirer.Install(ctx, target, candidates, dest)
	if err != nil {
		var agg *acquire.AggregateError
		if errors.As(err, &agg) {
			d.Logger.Debug("acquisition attempts", "artifact", target.Name, "detail", agg.Detail())
		}
		return "", err
	}
	source := inst.URL
	if source == "" {
		source = inst.Candidate
	}
	d.commit(target.Name, inst.Path, source)
	return inst.Path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
