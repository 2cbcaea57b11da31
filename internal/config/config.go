// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/gamekeeper/gamekeeper/internal/issue"
	"github.com/gamekeeper/gamekeeper/internal/platform"
)

const (
	// AppName is the application name.
	AppName = "gamekeeper"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is looked up in the working directory.
	LocalConfigFile = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes every namespaced environment variable.
	EnvPrefix = "GAMEKEEPER"

	// maxConfigFileBytes rejects config files that cannot be hand-written.
	maxConfigFileBytes = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// panelEnv maps config keys to the bare variable names game panels inject.
// The namespaced GAMEKEEPER_* name always takes precedence.
var panelEnv = map[string][]string{
	"install_dir":                {"INSTALL_DIR"},
	"rust.port":                  {"SERVER_PORT", "PORT"},
	"rust.max_players":           {"MAX_PLAYERS"},
	"rust.rcon_password":         {"RCON_PASSWORD"},
	"minecraft.port":             {"SERVER_PORT", "PORT"},
	"minecraft.max_players":      {"MAX_PLAYERS"},
	"minecraft.motd":             {"MOTD"},
	"minecraft.mem_min":          {"MEM_MIN"},
	"minecraft.mem_max":          {"MEM_MAX"},
	"minecraft.jar_url":          {"SERVER_JAR_URL"},
	"minecraft.jar_fallback_url": {"SERVER_JAR_FALLBACK_URL"},
	"minecraft.paper_version":    {"PAPER_VERSION"},
	"minecraft.jre_cache_dir":    {"JRE_CACHE_DIR"},
	"minecraft.auto_install_jre": {"AUTO_INSTALL_JRE"},
	"acquire.github_token":       {"GITHUB_TOKEN"},
}

// ConfigDir returns the gamekeeper configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS,
// and $XDG_CONFIG_HOME (defaulting to ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions builds a fresh Viper instance, layers every source and
// returns the decoded, path-resolved and validated config together with the
// config file that was used (empty when none).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'gamekeeper config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, "", err
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.resolvePaths(opts.WorkDir); err != nil {
		return nil, "", err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Fix the listed fields in the config file or environment").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// resolveConfigFile picks the config file: an explicit path must exist; otherwise
// the per-user file is preferred over ./gamekeeper.cue, and neither is required.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err == nil {
			cfgDir = dir
		}
	}
	if cfgDir != "" {
		if p := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
			return p, nil
		}
	}

	local := LocalConfigFile
	if opts.WorkDir != "" {
		local = filepath.Join(opts.WorkDir, LocalConfigFile)
	}
	if fileExists(local) {
		return local, nil
	}
	return "", nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("game", string(d.Game))
	v.SetDefault("install_dir", d.InstallDir)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("user_agent", d.UserAgent)

	v.SetDefault("supervisor.restart_delay", d.Supervisor.RestartDelay)
	v.SetDefault("supervisor.fast_crash_uptime", d.Supervisor.FastCrashUptime)
	v.SetDefault("supervisor.max_fast_crashes", d.Supervisor.MaxFastCrashes)
	v.SetDefault("supervisor.max_crashes", d.Supervisor.MaxCrashes)
	v.SetDefault("supervisor.shutdown_grace", d.Supervisor.ShutdownGrace)

	v.SetDefault("acquire.fetch_timeout", d.Acquire.FetchTimeout)
	v.SetDefault("acquire.metadata_timeout", d.Acquire.MetadataTimeout)
	v.SetDefault("acquire.github_token", d.Acquire.GitHubToken)
	v.SetDefault("acquire.github_api", d.Acquire.GitHubAPI)
	v.SetDefault("acquire.paper_api", d.Acquire.PaperAPI)

	v.SetDefault("rust.app_id", d.Rust.AppID)
	v.SetDefault("rust.identity", d.Rust.Identity)
	v.SetDefault("rust.hostname", d.Rust.Hostname)
	v.SetDefault("rust.description", d.Rust.Description)
	v.SetDefault("rust.url", d.Rust.URL)
	v.SetDefault("rust.header_image", d.Rust.HeaderImage)
	v.SetDefault("rust.bind_ip", d.Rust.BindIP)
	v.SetDefault("rust.port", d.Rust.Port)
	v.SetDefault("rust.level", d.Rust.Level)
	v.SetDefault("rust.world_size", d.Rust.WorldSize)
	v.SetDefault("rust.seed", d.Rust.Seed)
	v.SetDefault("rust.max_players", d.Rust.MaxPlayers)
	v.SetDefault("rust.save_interval", d.Rust.SaveInterval)
	v.SetDefault("rust.rcon_password", d.Rust.RCONPassword)
	v.SetDefault("rust.rcon_web", d.Rust.RCONWeb)
	v.SetDefault("rust.extra_args", d.Rust.ExtraArgs)

	v.SetDefault("minecraft.mem_min", d.Minecraft.MemMin)
	v.SetDefault("minecraft.mem_max", d.Minecraft.MemMax)
	v.SetDefault("minecraft.port", d.Minecraft.Port)
	v.SetDefault("minecraft.max_players", d.Minecraft.MaxPlayers)
	v.SetDefault("minecraft.motd", d.Minecraft.MOTD)
	v.SetDefault("minecraft.jar_url", d.Minecraft.JarURL)
	v.SetDefault("minecraft.jar_fallback_url", d.Minecraft.JarFallbackURL)
	v.SetDefault("minecraft.paper_version", d.Minecraft.PaperVersion)
	v.SetDefault("minecraft.jre_cache_dir", d.Minecraft.JRECacheDir)
	v.SetDefault("minecraft.auto_install_jre", d.Minecraft.AutoInstallJRE)
	v.SetDefault("minecraft.public_ip_lookup", d.Minecraft.PublicIPLookup)
	v.SetDefault("minecraft.ready_markers", d.Minecraft.ReadyMarkers)
	v.SetDefault("minecraft.jvm_args", d.Minecraft.JVMArgs)

	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// bindEnv wires GAMEKEEPER_<KEY> for every known key and the bare panel
// variables listed in panelEnv.
func bindEnv(v *viper.Viper) error {
	replacer := strings.NewReplacer(".", "_")
	for _, key := range v.AllKeys() {
		names := []string{EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))}
		names = append(names, panelEnv[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("binding environment for %s: %w", key, err)
		}
	}
	return nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileBytes {
		return fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileBytes)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// formatCUEError flattens a CUE error list into one message with positions.
func formatCUEError(err error) error {
	return fmt.Errorf("%s", strings.TrimSpace(cueerrors.Details(err, nil)))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// resolvePaths fills directory defaults relative to the install directory
// and makes every path absolute.
func (c *Config) resolvePaths(workDir string) error {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		workDir = wd
	}

	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(workDir, p)
	}

	c.InstallDir = abs(c.InstallDir)
	if c.InstallDir == "" {
		c.InstallDir = workDir
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.InstallDir, ".gamekeeper")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.InstallDir, "server_log.txt")
	}
	if c.Minecraft.JRECacheDir == "" {
		c.Minecraft.JRECacheDir = filepath.Join(c.InstallDir, ".jre")
	}
	c.CacheDir = abs(c.CacheDir)
	c.LogFile = abs(c.LogFile)
	c.Minecraft.JRECacheDir = abs(c.Minecraft.JRECacheDir)
	return nil
}
