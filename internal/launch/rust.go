// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gamekeeper/gamekeeper/internal/config"
	"github.com/gamekeeper/gamekeeper/internal/platform"
)

const (
	// RustExecutable is the dedicated server binary name without extension.
	RustExecutable = "RustDedicated"

	maxSeed = 2147483647
)

// Rust launches a Rust dedicated server from an install directory.
type Rust struct {
	cfg        config.RustConfig
	installDir string
	settings
}

// NewRust creates the Rust profile.
func NewRust(installDir string, cfg config.RustConfig, opts ...Option) *Rust {
	return &Rust{cfg: cfg, installDir: installDir, settings: newSettings(opts)}
}

// Name implements Profile.
func (r *Rust) Name() string { return string(config.GameRust) }

// Port implements Profile.
func (r *Rust) Port() int { return r.cfg.Port }

// ReadyMarkers implements Profile.
func (r *Rust) ReadyMarkers() []string { return []string{"Server startup complete"} }

// OOMAdvice implements Profile.
func (r *Rust) OOMAdvice() string {
	return fmt.Sprintf("lower rust.world_size (currently %d) or raise the container memory limit", r.cfg.WorldSize)
}

// ExecutablePath is where the dedicated server binary lives after install.
func (r *Rust) ExecutablePath() string {
	return filepath.Join(r.installDir, platform.ExecutableNameFor(r.goos, RustExecutable))
}

// ConfigPath is the server.cfg written by Prepare.
func (r *Rust) ConfigPath() string {
	return filepath.Join(r.installDir, "server", r.cfg.Identity, "cfg", "server.cfg")
}

// Prepare writes server/<identity>/cfg/server.cfg.
func (r *Rust) Prepare() error {
	var sb strings.Builder
	sb.WriteString("# Generated by gamekeeper; changes are overwritten on every launch.\n")
	fmt.Fprintf(&sb, "server.hostname %q\n", r.cfg.Hostname)
	fmt.Fprintf(&sb, "server.description %q\n", r.cfg.Description)
	fmt.Fprintf(&sb, "server.url %q\n", r.cfg.URL)
	fmt.Fprintf(&sb, "server.headerimage %q\n", r.cfg.HeaderImage)
	fmt.Fprintf(&sb, "server.maxplayers %d\n", r.cfg.MaxPlayers)
	fmt.Fprintf(&sb, "server.worldsize %d\n", r.cfg.WorldSize)
	fmt.Fprintf(&sb, "server.saveinterval %d\n", r.cfg.SaveInterval)
	sb.WriteString("server.globalchat true\n")
	sb.WriteString("server.stability true\n")

	if err := writeFileAtomic(r.ConfigPath(), []byte(sb.String())); err != nil {
		return fmt.Errorf("writing %s: %w", r.ConfigPath(), err)
	}
	return nil
}

// Command implements Profile. A zero seed draws a fresh random seed on every call.
func (r *Rust) Command(a Artifacts) (Command, error) {
	exe := a.Runtime
	if exe == "" {
		exe = r.ExecutablePath()
	}

	seed := r.cfg.Seed
	if seed == 0 {
		seed = r.seed()
	}
	port := strconv.Itoa(r.cfg.Port)

	args := []string{
		"-batchmode",
		"-nographics",
		"+server.ip", r.cfg.BindIP,
		"+server.port", port,
		"+server.queryport", port,
		"+server.level", r.cfg.Level,
		"+server.seed", strconv.Itoa(seed),
		"+server.worldsize", strconv.Itoa(r.cfg.WorldSize),
		"+server.maxplayers", strconv.Itoa(r.cfg.MaxPlayers),
		"+server.hostname", r.cfg.Hostname,
		"+server.description", r.cfg.Description,
		"+server.identity", r.cfg.Identity,
		"+rcon.port", port,
		"+rcon.password", r.cfg.RCONPassword,
		"+rcon.web", boolFlag(r.cfg.RCONWeb),
	}

	env := r.environ()
	extra, err := SplitArgs(r.cfg.ExtraArgs, env)
	if err != nil {
		return Command{}, err
	}
	args = append(args, extra...)

	if r.goos != platform.Windows {
		args = append(args, "-logfile", "/dev/stdout")
		env = PrependPathList(env, "LD_LIBRARY_PATH",
			r.installDir,
			filepath.Join(r.installDir, "RustDedicated_Data", "Plugins"),
			filepath.Join(r.installDir, "RustDedicated_Data", "Plugins", "x86_64"),
		)
	}

	return Command{Path: exe, Args: args, Env: env, Dir: r.installDir}, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
