// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

var memSizePattern = regexp.MustCompile(`^[0-9]+[KkMmGg]?$`)

type (
	// FieldError names one invalid field.
	FieldError struct {
		Field  string
		Reason string
	}

	// InvalidConfigError collects every invalid field found by Validate.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []FieldError
	}
)

// Error implements error.
func (e *InvalidConfigError) Error() string {
	parts := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		parts = append(parts, fe.Field+": "+fe.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks constraints that hold regardless of where a value came
// from. Environment variables bypass the CUE schema, so ranges are repeated here.
func (c *Config) Validate() error {
	var errs []FieldError
	add := func(field, reason string) {
		errs = append(errs, FieldError{Field: field, Reason: reason})
	}

	switch c.Game {
	case GameRust, GameMinecraft:
	default:
		add("game", fmt.Sprintf("must be %q or %q, got %q", GameRust, GameMinecraft, c.Game))
	}

	s := c.Supervisor
	if s.RestartDelay < 0 {
		add("supervisor.restart_delay", "must not be negative")
	}
	if s.FastCrashUptime <= 0 {
		add("supervisor.fast_crash_uptime", "must be positive")
	}
	if s.MaxFastCrashes < 1 {
		add("supervisor.max_fast_crashes", "must be at least 1")
	}
	if s.MaxCrashes < 1 {
		add("supervisor.max_crashes", "must be at least 1")
	}
	if s.ShutdownGrace < 0 {
		add("supervisor.shutdown_grace", "must not be negative")
	}

	if c.Acquire.FetchTimeout <= 0 {
		add("acquire.fetch_timeout", "must be positive")
	}
	if c.Acquire.MetadataTimeout <= 0 {
		add("acquire.metadata_timeout", "must be positive")
	}

	if !validPort(c.Rust.Port) {
		add("rust.port", fmt.Sprintf("must be between 1 and 65535, got %d", c.Rust.Port))
	}
	if c.Rust.Seed < 0 {
		add("rust.seed", "must not be negative (0 picks a random seed)")
	}
	if c.Rust.WorldSize <= 0 {
		add("rust.world_size", "must be positive")
	}
	if c.Rust.MaxPlayers < 1 {
		add("rust.max_players", "must be at least 1")
	}

	if !validPort(c.Minecraft.Port) {
		add("minecraft.port", fmt.Sprintf("must be between 1 and 65535, got %d", c.Minecraft.Port))
	}
	if c.Minecraft.MaxPlayers < 1 {
		add("minecraft.max_players", "must be at least 1")
	}
	if !memSizePattern.MatchString(c.Minecraft.MemMin) {
		add("minecraft.mem_min", fmt.Sprintf("must look like 512M or 2G, got %q", c.Minecraft.MemMin))
	}
	if !memSizePattern.MatchString(c.Minecraft.MemMax) {
		add("minecraft.mem_max", fmt.Sprintf("must look like 512M or 2G, got %q", c.Minecraft.MemMax))
	}
	if _, ok := ParseSwitch(c.Minecraft.AutoInstallJRE); !ok && c.Minecraft.AutoInstallJRE != "" {
		add("minecraft.auto_install_jre", fmt.Sprintf("must be yes/no/true/false/1/0, got %q", c.Minecraft.AutoInstallJRE))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// ParseSwitch interprets yes/no style values. The second result is false
// when s is empty or unrecognised.
func ParseSwitch(s string) (on, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "on":
		return true, true
	case "no", "false", "0", "off":
		return false, true
	default:
		return false, false
	}
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}
