// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gamekeeper/gamekeeper/internal/acquire"
	"github.com/gamekeeper/gamekeeper/internal/config"
	"github.com/gamekeeper/gamekeeper/internal/issue"
	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/platform"
)

const (
	// ServerJarArtifact is the store key of the server jar.
	ServerJarArtifact = "server-jar"
	// JREArtifact is the store key of the java executable.
	JREArtifact = "jre"

	// PinnedPaperURL is the last-resort jar source.
	PinnedPaperURL = "https://fill-data.papermc.io/v1/objects/ec5a877eb5f01372cb23665595913f3593e3c746dfcf125d34f6f0ba69acb4d1/paper-1.21.11-125.jar"

	// autoInstallMemoryKB is the host memory above which a JRE is installed
	// without being asked to.
	autoInstallMemoryKB = 1_000_000
)

// ErrJREDeclined means no java was found and auto-install is off.
var ErrJREDeclined = errors.New("no java runtime found and auto-install is disabled")

// Minecraft installs the Paper jar and a Java runtime.
type Minecraft struct {
	cfg     *config.Config
	profile *launch.Minecraft
	deps    Deps
}

// NewMinecraft returns a Minecraft provisioner.
func NewMinecraft(cfg *config.Config, profile *launch.Minecraft, deps Deps) *Minecraft {
	return &Minecraft{cfg: cfg, profile: profile, deps: deps.withDefaults()}
}

// Prepare implements Provisioner.
func (m *Minecraft) Prepare(ctx context.Context) (launch.Artifacts, error) {
	jar, err := m.serverJar(ctx)
	if err != nil {
		return launch.Artifacts{}, issue.NewErrorContext().
			WithOperation("download the server jar").
			WithResource(m.profile.JarPath()).
			WithSuggestion("Set SERVER_JAR_URL to a reachable Paper or vanilla jar").
			WithSuggestion("Or place server.jar in the install directory yourself").
			WithGuide(issue.InstallFailedGuide).
			Wrap(err).
			BuildError()
	}

	java, err := m.java(ctx)
	if err != nil {
		return launch.Artifacts{}, issue.NewErrorContext().
			WithOperation("find a Java runtime").
			WithResource(m.cfg.Minecraft.JRECacheDir).
			WithSuggestion("Install Java 17 or newer and make sure it is on PATH").
			WithSuggestion("Or set AUTO_INSTALL_JRE=yes to download a portable JRE").
			WithGuide(issue.JavaMissingGuide).
			Wrap(err).
			BuildError()
	}
	return launch.Artifacts{Runtime: java, Server: jar}, nil
}

// Update implements Provisioner. Installed artifacts are kept as they are;
// anything deleted since the last launch is acquired again.
func (m *Minecraft) Update(ctx context.Context) (launch.Artifacts, error) {
	jar, err := m.serverJar(ctx)
	if err != nil {
		return launch.Artifacts{}, err
	}
	java, err := m.java(ctx)
	if err != nil {
		return launch.Artifacts{}, err
	}
	return launch.Artifacts{Runtime: java, Server: jar}, nil
}

func (m *Minecraft) serverJar(ctx context.Context) (string, error) {
	if path, ok := m.deps.cached(ServerJarArtifact); ok {
		return path, nil
	}
	jar := m.profile.JarPath()
	if fileExists(jar) {
		m.deps.commit(ServerJarArtifact, jar, "local")
		return jar, nil
	}

	target := acquire.Target{Name: ServerJarArtifact, FileName: filepath.Base(jar)}
	return m.deps.acquire(ctx, target, m.JarCandidates(), filepath.Dir(jar))
}

// JarCandidates lists jar sources in priority order.
func (m *Minecraft) JarCandidates() []acquire.Candidate {
	mc := m.cfg.Minecraft
	var out []acquire.Candidate
	if mc.JarURL != "" {
		out = append(out, acquire.URLCandidate("jar_url", acquire.KindBinary, mc.JarURL))
	}
	out = append(out, acquire.Candidate{
		Name:     "papermc-api",
		Kind:     acquire.KindBinary,
		Resolver: acquire.PaperBuild{Client: m.deps.Paper, Version: mc.PaperVersion},
	})
	if mc.JarFallbackURL != "" {
		out = append(out, acquire.URLCandidate("jar_fallback_url", acquire.KindBinary, mc.JarFallbackURL))
	}
	return append(out, acquire.URLCandidate("paper-pinned", acquire.KindBinary, PinnedPaperURL))
}

// java returns a java executable, installing a JRE when allowed.
func (m *Minecraft) java(ctx context.Context) (string, error) {
	if path, err := m.deps.LookPath("java"); err == nil {
		return path, nil
	}
	if path, ok := m.deps.cached(JREArtifact); ok {
		return path, nil
	}

	name := platform.ExecutableNameFor(m.deps.GOOS, "java")
	dir := m.cfg.Minecraft.JRECacheDir
	if path, err := acquire.FindArtifact(dir, name); err == nil {
		m.deps.commit(JREArtifact, path, "local")
		return path, nil
	}

	if !m.autoInstallAllowed(ctx) {
		return "", ErrJREDeclined
	}
	m.deps.Logger.Info("java not found; installing a portable JRE", "dir", dir)
	target := acquire.Target{Name: JREArtifact, FileName: name, Executable: true}
	return m.deps.acquire(ctx, target, JRECandidates(m.deps.GOOS, m.deps.GOARCH), dir)
}

// autoInstallAllowed honours an explicit setting, otherwise installs only on
// hosts with enough memory to run the server at all.
func (m *Minecraft) autoInstallAllowed(ctx context.Context) bool {
	if on, ok := config.ParseSwitch(m.cfg.Minecraft.AutoInstallJRE); ok {
		return on
	}
	stats, err := m.deps.Memory(ctx)
	if err != nil {
		m.deps.Logger.Warn("could not read host memory; skipping JRE auto-install", "err", err)
		return false
	}
	return stats.TotalKB() >= autoInstallMemoryKB
}

// JRECandidates lists Java 21 then Java 17 runtime archives for a platform.
func JRECandidates(goos, goarch string) []acquire.Candidate {
	adoptOS, adoptArch, ext := "linux", "x64", "tar.gz"
	libericaOS, libericaArch := "linux", "amd64"
	switch goos {
	case "windows":
		adoptOS, libericaOS, ext = "windows", "windows", "zip"
	case "darwin":
		adoptOS, libericaOS = "mac", "macos"
	}
	if goarch == "arm64" {
		adoptArch, libericaArch = "aarch64", "aarch64"
	}

	var out []acquire.Candidate
	for _, v := range []int{21, 17} {
		out = append(out,
			acquire.URLCandidate(fmt.Sprintf("temurin%d-api", v), acquire.KindArchive,
				fmt.Sprintf("https://api.adoptium.net/v3/binary/latest/%d/ga/%s/%s/jre/hotspot/normal/eclipse?project=jdk",
					v, adoptOS, adoptArch)),
			acquire.URLCandidate(fmt.Sprintf("temurin%d-github", v), acquire.KindArchive,
				fmt.Sprintf("https://github.com/adoptium/temurin%d-binaries/releases/latest/download/OpenJDK%dU-jre_%s_%s_hotspot.%s",
					v, v, adoptArch, adoptOS, ext)),
			acquire.URLCandidate(fmt.Sprintf("liberica%d", v), acquire.KindArchive,
				fmt.Sprintf("https://github.com/bell-sw/liberica-releases/releases/latest/download/liberica-jre-%d-%s-%s.%s",
					v, libericaOS, libericaArch, ext)),
		)
	}
	return out
}
