// SPDX-License-Identifier: MPL-2.0

package config

import "time"

const (
	// GameRust runs a Rust dedicated server installed through DepotDownloader.
	GameRust Game = "rust"
	// GameMinecraft runs a Paper server on a Java runtime.
	GameMinecraft Game = "minecraft"

	// DefaultRCONPassword is the placeholder password shipped in defaults.
	DefaultRCONPassword = "changeme"
)

type (
	// Game selects the server profile.
	Game string

	// Config is the root configuration.
	Config struct {
		// Game selects the profile to run.
		Game Game `json:"game" mapstructure:"game"`
		// InstallDir is the server working directory. Empty means the current directory.
		InstallDir string `json:"install_dir" mapstructure:"install_dir"`
		// CacheDir holds the artifact index. Empty means <install_dir>/.gamekeeper.
		CacheDir string `json:"cache_dir" mapstructure:"cache_dir"`
		// LogFile is the session log. Empty means <install_dir>/server_log.txt.
		LogFile string `json:"log_file" mapstructure:"log_file"`
		// UserAgent is sent with every HTTP request.
		UserAgent string `json:"user_agent" mapstructure:"user_agent"`

		Supervisor SupervisorConfig `json:"supervisor" mapstructure:"supervisor"`
		Acquire    AcquireConfig    `json:"acquire" mapstructure:"acquire"`
		Rust       RustConfig       `json:"rust" mapstructure:"rust"`
		Minecraft  MinecraftConfig  `json:"minecraft" mapstructure:"minecraft"`
		Metrics    MetricsConfig    `json:"metrics" mapstructure:"metrics"`
		UI         UIConfig         `json:"ui" mapstructure:"ui"`
	}

	// SupervisorConfig holds restart policy knobs.
	SupervisorConfig struct {
		RestartDelay    time.Duration `json:"restart_delay" mapstructure:"restart_delay"`
		FastCrashUptime time.Duration `json:"fast_crash_uptime" mapstructure:"fast_crash_uptime"`
		MaxFastCrashes  int           `json:"max_fast_crashes" mapstructure:"max_fast_crashes"`
		MaxCrashes      int           `json:"max_crashes" mapstructure:"max_crashes"`
		ShutdownGrace   time.Duration `json:"shutdown_grace" mapstructure:"shutdown_grace"`
	}

	// AcquireConfig controls downloads.
	AcquireConfig struct {
		FetchTimeout    time.Duration `json:"fetch_timeout" mapstructure:"fetch_timeout"`
		MetadataTimeout time.Duration `json:"metadata_timeout" mapstructure:"metadata_timeout"`
		GitHubToken     string        `json:"github_token" mapstructure:"github_token"`
		GitHubAPI       string        `json:"github_api" mapstructure:"github_api"`
		PaperAPI        string        `json:"paper_api" mapstructure:"paper_api"`
	}

	// RustConfig configures the Rust dedicated server.
	RustConfig struct {
		AppID        int    `json:"app_id" mapstructure:"app_id"`
		Identity     string `json:"identity" mapstructure:"identity"`
		Hostname     string `json:"hostname" mapstructure:"hostname"`
		Description  string `json:"description" mapstructure:"description"`
		URL          string `json:"url" mapstructure:"url"`
		HeaderImage  string `json:"header_image" mapstructure:"header_image"`
		BindIP       string `json:"bind_ip" mapstructure:"bind_ip"`
		Port         int    `json:"port" mapstructure:"port"`
		Level        string `json:"level" mapstructure:"level"`
		WorldSize    int    `json:"world_size" mapstructure:"world_size"`
		Seed         int    `json:"seed" mapstructure:"seed"`
		MaxPlayers   int    `json:"max_players" mapstructure:"max_players"`
		SaveInterval int    `json:"save_interval" mapstructure:"save_interval"`
		RCONPassword string `json:"rcon_password" mapstructure:"rcon_password"`
		RCONWeb      bool   `json:"rcon_web" mapstructure:"rcon_web"`
		// ExtraArgs are appended to the server command line, split with shell quoting rules.
		ExtraArgs string `json:"extra_args" mapstructure:"extra_args"`
	}

	// MinecraftConfig configures the Paper server.
	MinecraftConfig struct {
		MemMin         string   `json:"mem_min" mapstructure:"mem_min"`
		MemMax         string   `json:"mem_max" mapstructure:"mem_max"`
		Port           int      `json:"port" mapstructure:"port"`
		MaxPlayers     int      `json:"max_players" mapstructure:"max_players"`
		MOTD           string   `json:"motd" mapstructure:"motd"`
		JarURL         string   `json:"jar_url" mapstructure:"jar_url"`
		JarFallbackURL string   `json:"jar_fallback_url" mapstructure:"jar_fallback_url"`
		PaperVersion   string   `json:"paper_version" mapstructure:"paper_version"`
		JRECacheDir    string   `json:"jre_cache_dir" mapstructure:"jre_cache_dir"`
		AutoInstallJRE string   `json:"auto_install_jre" mapstructure:"auto_install_jre"`
		PublicIPLookup []string `json:"public_ip_lookup" mapstructure:"public_ip_lookup"`
		ReadyMarkers   []string `json:"ready_markers" mapstructure:"ready_markers"`
		// JVMArgs are extra JVM flags placed before -jar, split with shell quoting rules.
		JVMArgs string `json:"jvm_args" mapstructure:"jvm_args"`
	}

	// MetricsConfig configures the optional Prometheus endpoint.
	MetricsConfig struct {
		// Listen is a host:port for /metrics. Empty disables the endpoint.
		Listen string `json:"listen" mapstructure:"listen"`
	}

	// UIConfig configures console output.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// String returns the game name.
func (g Game) String() string { return string(g) }

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Game:      GameMinecraft,
		UserAgent: "gamekeeper/dev",
		Supervisor: SupervisorConfig{
			RestartDelay:    15 * time.Second,
			FastCrashUptime: 60 * time.Second,
			MaxFastCrashes:  5,
			MaxCrashes:      3,
			ShutdownGrace:   30 * time.Second,
		},
		Acquire: AcquireConfig{
			FetchTimeout:    300 * time.Second,
			MetadataTimeout: 30 * time.Second,
			GitHubAPI:       "https://api.github.com",
			PaperAPI:        "https://api.papermc.io/v2",
		},
		Rust: RustConfig{
			AppID:        258550,
			Identity:     "myserver",
			Hostname:     "My Rust Server",
			Description:  "Auto-managed Rust server",
			BindIP:       "0.0.0.0",
			Port:         3109,
			Level:        "Procedural Map",
			WorldSize:    3500,
			MaxPlayers:   100,
			SaveInterval: 300,
			RCONPassword: DefaultRCONPassword,
			RCONWeb:      true,
		},
		Minecraft: MinecraftConfig{
			MemMin:     "256M",
			MemMax:     "512M",
			Port:       25565,
			MaxPlayers: 20,
			MOTD:       "Managed by gamekeeper",
			PublicIPLookup: []string{
				"https://api.ipify.org",
				"https://ifconfig.co/ip",
				"https://ifconfig.me/ip",
			},
			ReadyMarkers: []string{"Done (", "For help"},
		},
	}
}
