// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

type (
	// Command is a fully resolved child process invocation.
	Command struct {
		// Path is the executable.
		Path string
		// Args excludes the executable itself.
		Args []string
		// Env is the complete environment in KEY=VALUE form.
		Env []string
		// Dir is the working directory.
		Dir string
	}

	// Artifacts are the resolved files a profile launches from.
	Artifacts struct {
		// Runtime is the executable to start: the server binary, or the
		// java launcher for JVM servers.
		Runtime string
		// Server is the server jar for JVM servers and empty otherwise.
		Server string
	}

	// Profile describes how one kind of game server is configured and started.
	Profile interface {
		// Name is the game identifier used in logs.
		Name() string
		// Prepare writes the settings files the server reads at startup.
		// It runs before every launch.
		Prepare() error
		// Command builds the invocation for the given artifacts.
		Command(a Artifacts) (Command, error)
		// ReadyMarkers are substrings of a console line that mean the server
		// accepts players.
		ReadyMarkers() []string
		// Port is the player-facing port.
		Port() int
		// OOMAdvice is a one-line tuning hint shown after a likely
		// out-of-memory kill.
		OOMAdvice() string
	}
)

// redacted replaces secret flag values in rendered commands.
const redacted = "<redacted>"

// secretFlags are flags whose following argument is a credential.
var secretFlags = map[string]bool{
	"+rcon.password": true,
}

// String renders the command for logs. Arguments containing spaces are
// quoted and the values of secret flags are redacted.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Path))
	for i, a := range c.Args {
		if i > 0 && secretFlags[c.Args[i-1]] {
			a = redacted
		}
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// MergeEnv returns base with every key in overrides set, replacing existing
// entries in place and appending new ones in sorted key order.
func MergeEnv(base []string, overrides map[string]string) []string {
	out := slices.Clone(base)
	seen := make(map[string]bool, len(overrides))
	for i, kv := range out {
		key, _, _ := strings.Cut(kv, "=")
		if val, ok := overrides[key]; ok {
			out[i] = key + "=" + val
			seen[key] = true
		}
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

// PrependPathList puts dirs in front of the list-valued variable key
// (PATH, LD_LIBRARY_PATH), keeping any existing value after them.
func PrependPathList(env []string, key string, dirs ...string) []string {
	list := slices.Clone(dirs)
	if existing, ok := lookupEnv(env, key); ok && existing != "" {
		list = append(list, existing)
	}
	return MergeEnv(env, map[string]string{key: strings.Join(list, string(os.PathListSeparator))})
}

func lookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

// writeFileAtomic replaces path with data through a temporary sibling.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
