// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gamekeeper/gamekeeper/internal/acquire"
	"github.com/gamekeeper/gamekeeper/internal/config"
	"github.com/gamekeeper/gamekeeper/internal/issue"
	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/platform"
)

const (
	// DepotDownloaderArtifact is the store key of the DepotDownloader binary.
	DepotDownloaderArtifact = "depotdownloader"

	depotDownloaderOwner = "SteamRE"
	depotDownloaderRepo  = "DepotDownloader"
	depotDownloaderDir   = "depotdownloader"
)

// ErrServerMissing means DepotDownloader finished without producing the server binary.
var ErrServerMissing = errors.New("server executable missing after install")

// Rust installs and updates the Rust dedicated server through DepotDownloader.
type Rust struct {
	cfg     *config.Config
	profile *launch.Rust
	deps    Deps
}

// NewRust returns a Rust provisioner.
func NewRust(cfg *config.Config, profile *launch.Rust, deps Deps) *Rust {
	return &Rust{cfg: cfg, profile: profile, deps: deps.withDefaults()}
}

// Prepare implements Provisioner.
func (r *Rust) Prepare(ctx context.Context) (launch.Artifacts, error) {
	a, err := r.install(ctx)
	if err != nil {
		return launch.Artifacts{}, issue.NewErrorContext().
			WithOperation("install the Rust server").
			WithResource(r.cfg.InstallDir).
			WithSuggestion("Check network access to github.com and the Steam CDN").
			WithSuggestion("Make sure the install directory is writable").
			WithGuide(issue.InstallFailedGuide).
			Wrap(err).
			BuildError()
	}
	return a, nil
}

// Update implements Provisioner. DepotDownloader only fetches changed files,
// so running it before every restart is cheap when nothing changed.
func (r *Rust) Update(ctx context.Context) (launch.Artifacts, error) {
	return r.install(ctx)
}

func (r *Rust) install(ctx context.Context) (launch.Artifacts, error) {
	tool, err := r.depotDownloader(ctx)
	if err != nil {
		return launch.Artifacts{}, err
	}

	r.deps.Logger.Info("installing or updating server", "app", r.cfg.Rust.AppID, "dir", r.cfg.InstallDir)
	cmd := launch.Command{
		Path: tool,
		Args: []string{"-app", strconv.Itoa(r.cfg.Rust.AppID), "-dir", r.cfg.InstallDir},
		Dir:  r.cfg.InstallDir,
	}
	if err := r.deps.Runner.Run(ctx, cmd, newIndentWriter(r.deps.Output, "  ")); err != nil {
		return launch.Artifacts{}, fmt.Errorf("running DepotDownloader: %w", err)
	}

	server := r.profile.ExecutablePath()
	if !fileExists(server) {
		return launch.Artifacts{}, fmt.Errorf("%w: %s", ErrServerMissing, server)
	}
	if !platform.IsWindows() {
		if err := os.Chmod(server, 0o755); err != nil {
			return launch.Artifacts{}, fmt.Errorf("marking %s executable: %w", server, err)
		}
	}
	return launch.Artifacts{Runtime: server}, nil
}

// depotDownloader returns the tool path: cached, already unpacked, or freshly acquired.
func (r *Rust) depotDownloader(ctx context.Context) (string, error) {
	if path, ok := r.deps.cached(DepotDownloaderArtifact); ok {
		return path, nil
	}

	name := platform.ExecutableNameFor(r.deps.GOOS, "DepotDownloader")
	dest := filepath.Join(r.cfg.InstallDir, depotDownloaderDir)
	if path, err := acquire.FindArtifact(dest, name); err == nil {
		r.deps.commit(DepotDownloaderArtifact, path, "local")
		return path, nil
	}

	target := acquire.Target{Name: DepotDownloaderArtifact, FileName: name, Executable: true}
	return r.deps.acquire(ctx, target, r.candidates(), dest)
}

func (r *Rust) candidates() []acquire.Candidate {
	return []acquire.Candidate{{
		Name: "github:" + depotDownloaderOwner + "/" + depotDownloaderRepo,
		Kind: acquire.KindArchive,
		Resolver: acquire.GitHubLatestAsset{
			Client:       r.deps.GitHub,
			Owner:        depotDownloaderOwner,
			Repo:         depotDownloaderRepo,
			AssetPattern: DepotDownloaderAsset(r.deps.GOOS, r.deps.GOARCH),
		},
	}}
}

// DepotDownloaderAsset returns the release asset name for a platform.
func DepotDownloaderAsset(goos, goarch string) string {
	osName := "linux"
	switch goos {
	case "windows":
		osName = "windows"
	case "darwin":
		osName = "macos"
	}
	arch := "x64"
	if goarch == "arm64" {
		arch = "arm64"
	}
	return "DepotDownloader-" + osName + "-" + arch + ".zip"
}
