// SPDX-License-Identifier: MPL-2.0

package tee

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OpenSessionLog opens path for appending, creating it and its parent
// directory when missing, and writes a session banner.
func OpenSessionLog(path string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	if _, err := f.WriteString(SessionBanner(now)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("writing session banner: %w", err)
	}
	return f, nil
}

// SessionBanner returns the separator block written at the top of each run.
func SessionBanner(now time.Time) string {
	rule := strings.Repeat("=", 60)
	return fmt.Sprintf("\n%s\n  Log session started: %s\n%s\n", rule, now.Format(TimestampLayout), rule)
}
