// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"
	"time"
)

// GenerateCUE renders cfg as a config.cue document. Secrets are masked.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	w := func(indent int, format string, args ...any) {
		sb.WriteString(strings.Repeat("\t", indent))
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	}

	sb.WriteString("// gamekeeper configuration\n\n")
	w(0, "game:        %q", cfg.Game)
	w(0, "install_dir: %q", cfg.InstallDir)
	w(0, "cache_dir:   %q", cfg.CacheDir)
	w(0, "log_file:    %q", cfg.LogFile)
	w(0, "user_agent:  %q", cfg.UserAgent)

	w(0, "\nsupervisor: {")
	w(1, "restart_delay:     %q", duration(cfg.Supervisor.RestartDelay))
	w(1, "fast_crash_uptime: %q", duration(cfg.Supervisor.FastCrashUptime))
	w(1, "max_fast_crashes:  %d", cfg.Supervisor.MaxFastCrashes)
	w(1, "max_crashes:       %d", cfg.Supervisor.MaxCrashes)
	w(1, "shutdown_grace:    %q", duration(cfg.Supervisor.ShutdownGrace))
	w(0, "}")

	w(0, "\nacquire: {")
	w(1, "fetch_timeout:    %q", duration(cfg.Acquire.FetchTimeout))
	w(1, "metadata_timeout: %q", duration(cfg.Acquire.MetadataTimeout))
	if cfg.Acquire.GitHubToken != "" {
		w(1, "github_token:     %q", mask(cfg.Acquire.GitHubToken))
	}
	w(1, "github_api:       %q", cfg.Acquire.GitHubAPI)
	w(1, "paper_api:        %q", cfg.Acquire.PaperAPI)
	w(0, "}")

	r := cfg.Rust
	w(0, "\nrust: {")
	w(1, "app_id:        %d", r.AppID)
	w(1, "identity:      %q", r.Identity)
	w(1, "hostname:      %q", r.Hostname)
	w(1, "description:   %q", r.Description)
	w(1, "url:           %q", r.URL)
	w(1, "header_image:  %q", r.HeaderImage)
	w(1, "bind_ip:       %q", r.BindIP)
	w(1, "port:          %d", r.Port)
	w(1, "level:         %q", r.Level)
	w(1, "world_size:    %d", r.WorldSize)
	w(1, "seed:          %d", r.Seed)
	w(1, "max_players:   %d", r.MaxPlayers)
	w(1, "save_interval: %d", r.SaveInterval)
	w(1, "rcon_password: %q", mask(r.RCONPassword))
	w(1, "rcon_web:      %v", r.RCONWeb)
	w(1, "extra_args:    %q", r.ExtraArgs)
	w(0, "}")

	m := cfg.Minecraft
	w(0, "\nminecraft: {")
	w(1, "mem_min:          %q", m.MemMin)
	w(1, "mem_max:          %q", m.MemMax)
	w(1, "port:             %d", m.Port)
	w(1, "max_players:      %d", m.MaxPlayers)
	w(1, "motd:             %q", m.MOTD)
	w(1, "jar_url:          %q", m.JarURL)
	w(1, "jar_fallback_url: %q", m.JarFallbackURL)
	w(1, "paper_version:    %q", m.PaperVersion)
	w(1, "jre_cache_dir:    %q", m.JRECacheDir)
	w(1, "auto_install_jre: %q", m.AutoInstallJRE)
	w(1, "public_ip_lookup: %s", stringList(m.PublicIPLookup))
	w(1, "ready_markers:    %s", stringList(m.ReadyMarkers))
	w(1, "jvm_args:         %q", m.JVMArgs)
	w(0, "}")

	w(0, "\nmetrics: {")
	w(1, "listen: %q", cfg.Metrics.Listen)
	w(0, "}")

	w(0, "\nui: {")
	w(1, "verbose: %v", cfg.UI.Verbose)
	w(0, "}")

	return sb.String()
}

func duration(d time.Duration) string {
	return d.String()
}

func mask(secret string) string {
	if secret == "" || secret == DefaultRCONPassword {
		return secret
	}
	return "********"
}

func stringList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, it := range items {
		quoted = append(quoted, fmt.Sprintf("%q", it))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
