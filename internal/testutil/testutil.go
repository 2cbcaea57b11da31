// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// MustSetenv sets the environment variable key to value and restores the
// previous value when the test ends.
func MustSetenv(t testing.TB, key, value string) {
	t.Helper()
	originalValue, hadValue := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() { restoreEnv(t, key, originalValue, hadValue) })
}

// MustUnsetenv unsets the environment variable key and restores the previous
// value (if any) when the test ends.
func MustUnsetenv(t testing.TB, key string) {
	t.Helper()
	originalValue, hadValue := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() { restoreEnv(t, key, originalValue, hadValue) })
}

func restoreEnv(t testing.TB, key, value string, had bool) {
	if had {
		if err := os.Setenv(key, value); err != nil {
			t.Errorf("failed to restore env %s: %v", key, err)
		}
		return
	}
	if err := os.Unsetenv(key); err != nil {
		t.Errorf("failed to unset env %s: %v", key, err)
	}
}

// MustWriteFile writes data to path, creating parent directories.
func MustWriteFile(t testing.TB, path string, data []byte, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// MustReadFile returns the contents of path.
func MustReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
