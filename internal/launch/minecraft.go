// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gamekeeper/gamekeeper/internal/config"
)

const (
	// ServerJarName is the file name the jar is placed under.
	ServerJarName = "server.jar"
	// EULAFileName is the Mojang EULA acceptance file.
	EULAFileName = "eula.txt"
	// PropertiesFileName is the vanilla/Paper settings file.
	PropertiesFileName = "server.properties"
)

// ErrNoJava is returned by Minecraft.Command when no java launcher is known.
var ErrNoJava = errors.New("no java runtime resolved")

// Minecraft launches a Paper server on a Java runtime.
type Minecraft struct {
	cfg        config.MinecraftConfig
	installDir string
	settings
}

// NewMinecraft creates the Minecraft profile.
func NewMinecraft(installDir string, cfg config.MinecraftConfig, opts ...Option) *Minecraft {
	return &Minecraft{cfg: cfg, installDir: installDir, settings: newSettings(opts)}
}

// Name implements Profile.
func (m *Minecraft) Name() string { return string(config.GameMinecraft) }

// Port implements Profile.
func (m *Minecraft) Port() int { return m.cfg.Port }

// ReadyMarkers implements Profile.
func (m *Minecraft) ReadyMarkers() []string { return m.cfg.ReadyMarkers }

// OOMAdvice implements Profile.
func (m *Minecraft) OOMAdvice() string {
	return fmt.Sprintf("lower -Xmx (minecraft.mem_max, currently %s) below the container memory limit", m.cfg.MemMax)
}

// JarPath is where the server jar is placed.
func (m *Minecraft) JarPath() string {
	return filepath.Join(m.installDir, ServerJarName)
}

// Prepare accepts the EULA when no eula.txt exists and rewrites
// server.properties from configuration.
func (m *Minecraft) Prepare() error {
	eula := filepath.Join(m.installDir, EULAFileName)
	if _, err := os.Stat(eula); errors.Is(err, os.ErrNotExist) {
		if err := writeFileAtomic(eula, []byte("eula=true\n")); err != nil {
			return fmt.Errorf("writing %s: %w", eula, err)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "server-port=%d\n", m.cfg.Port)
	fmt.Fprintf(&sb, "max-players=%d\n", m.cfg.MaxPlayers)
	fmt.Fprintf(&sb, "motd=%s\n", escapeProperty(m.cfg.MOTD))

	props := filepath.Join(m.installDir, PropertiesFileName)
	if err := writeFileAtomic(props, []byte(sb.String())); err != nil {
		return fmt.Errorf("writing %s: %w", props, err)
	}
	return nil
}

// Command implements Profile.
func (m *Minecraft) Command(a Artifacts) (Command, error) {
	if a.Runtime == "" {
		return Command{}, ErrNoJava
	}
	jar := a.Server
	if jar == "" {
		jar = m.JarPath()
	}

	env := m.environ()
	jvmArgs, err := SplitArgs(m.cfg.JVMArgs, env)
	if err != nil {
		return Command{}, err
	}

	args := []string{"-Xms" + m.cfg.MemMin, "-Xmx" + m.cfg.MemMax}
	args = append(args, jvmArgs...)
	args = append(args, "-jar", jar, "nogui")

	if filepath.IsAbs(a.Runtime) {
		env = PrependPathList(env, "PATH", filepath.Dir(a.Runtime))
	}

	return Command{Path: a.Runtime, Args: args, Env: env, Dir: m.installDir}, nil
}

// escapeProperty escapes characters that java.util.Properties treats specially.
func escapeProperty(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	return r.Replace(s)
}
