// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCrashLoop is the sentinel error wrapped by CrashLoopError.
var ErrCrashLoop = errors.New("crash loop")

type (
	// SpawnError reports a launch that never produced a running child.
	// It is never retried.
	SpawnError struct {
		// Stage is prepare, command or spawn.
		Stage string
		Path  string
		Err   error
	}

	// CrashLoopError reports that a crash ceiling stopped the supervisor.
	// It wraps ErrCrashLoop for errors.Is() compatibility.
	CrashLoopError struct {
		Counter Counter
		Count   int
		Ceiling int
		// History holds the most recent verdicts, oldest first.
		History []Verdict
	}
)

// Error implements error.
func (e *SpawnError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *SpawnError) Unwrap() error { return e.Err }

// Error implements error.
func (e *CrashLoopError) Error() string {
	what := "consecutive crashes"
	if e.Counter == CounterFast {
		what = "consecutive fast crashes"
	}
	return fmt.Sprintf("%v: %d %s (limit %d)", ErrCrashLoop, e.Count, what, e.Ceiling)
}

// Unwrap returns ErrCrashLoop.
func (e *CrashLoopError) Unwrap() error { return ErrCrashLoop }

// Detail renders the verdict history, one exit per line.
func (e *CrashLoopError) Detail() string {
	var sb strings.Builder
	for i, v := range e.History {
		fmt.Fprintf(&sb, "  #%d %s\n", i+1, v)
	}
	return sb.String()
}
