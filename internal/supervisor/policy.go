// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"fmt"
	"time"

	"github.com/gamekeeper/gamekeeper/internal/platform"
)

const (
	// DefaultFastCrashUptime is the uptime below which an exit is a fast crash.
	DefaultFastCrashUptime = 60 * time.Second
	// DefaultMaxFastCrashes is the consecutive fast crash ceiling.
	DefaultMaxFastCrashes = 5
	// DefaultMaxCrashes is the consecutive non-zero exit ceiling.
	DefaultMaxCrashes = 3

	// oomExitCode is 128+SIGKILL, the shell convention for a SIGKILL death.
	oomExitCode = 137
)

const (
	// CounterNone means no ceiling was reached.
	CounterNone Counter = iota
	// CounterFast is the consecutive fast crash counter.
	CounterFast
	// CounterTotal is the consecutive non-zero exit counter.
	CounterTotal
)

const (
	// KindClean is a zero exit code.
	KindClean Kind = iota
	// KindCrash is a non-zero exit code.
	KindCrash
	// KindSignaled is a death by signal.
	KindSignaled
)

type (
	// Counter names one of the two crash counters.
	Counter int

	// Kind is the coarse outcome of one exit.
	Kind int

	// Exit is how one child run ended.
	Exit struct {
		// Code is the exit status. A death by signal N is reported as -N.
		Code int
		// Signal is the terminating signal number, or 0.
		Signal int
		// Uptime is the time between spawn and exit.
		Uptime time.Duration
	}

	// Policy holds the restart ceilings.
	Policy struct {
		FastCrashUptime time.Duration
		MaxFastCrashes  int
		MaxCrashes      int
	}

	// Counters is the crash history carried across restarts.
	Counters struct {
		// FastCrashes counts consecutive exits below the uptime threshold.
		FastCrashes int
		// Crashes counts consecutive non-zero exits.
		Crashes int
	}

	// Verdict is the classification of one exit.
	Verdict struct {
		Exit Exit
		Kind Kind
		// Fast reports an uptime below the fast crash threshold.
		Fast bool
		// LikelyOOM reports a SIGKILL death, usually the kernel OOM killer.
		LikelyOOM bool
		// Counters is the state after this exit was counted.
		Counters Counters
		// Tripped names the ceiling reached by this exit, if any.
		Tripped Counter
	}
)

// DefaultPolicy returns the built-in ceilings.
func DefaultPolicy() Policy {
	return Policy{
		FastCrashUptime: DefaultFastCrashUptime,
		MaxFastCrashes:  DefaultMaxFastCrashes,
		MaxCrashes:      DefaultMaxCrashes,
	}
}

// String returns the counter name used in logs and metrics.
func (c Counter) String() string {
	switch c {
	case CounterNone:
		return "none"
	case CounterFast:
		return "fast"
	case CounterTotal:
		return "total"
	default:
		return "unknown"
	}
}

// String returns the kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindClean:
		return "clean"
	case KindCrash:
		return "crash"
	case KindSignaled:
		return "signaled"
	default:
		return "unknown"
	}
}

// Evaluate counts e into c and classifies it. Both counters are updated on
// every exit: the fast counter by uptime and the total counter by exit code.
// When both ceilings are reached at once the fast counter is reported.
func (p Policy) Evaluate(c *Counters, e Exit) Verdict {
	v := Verdict{Exit: e, Kind: KindClean}
	switch {
	case e.Signal != 0:
		v.Kind = KindSignaled
	case e.Code != 0:
		v.Kind = KindCrash
	}
	v.LikelyOOM = e.Signal == platform.SIGKILL || e.Code == oomExitCode || e.Code == -platform.SIGKILL

	v.Fast = e.Uptime < p.FastCrashUptime
	if v.Fast {
		c.FastCrashes++
	} else {
		c.FastCrashes = 0
	}

	if e.Code != 0 {
		c.Crashes++
	} else {
		c.Crashes = 0
	}
	v.Counters = *c

	switch {
	case c.FastCrashes >= p.MaxFastCrashes:
		v.Tripped = CounterFast
	case c.Crashes >= p.MaxCrashes:
		v.Tripped = CounterTotal
	}
	return v
}

// Fatal reports whether the verdict stops the supervisor.
func (v Verdict) Fatal() bool {
	return v.Tripped != CounterNone
}

// String summarises the verdict for one log line.
func (v Verdict) String() string {
	return fmt.Sprintf("exit=%d uptime=%s kind=%s fast=%t fast_crashes=%d crashes=%d",
		v.Exit.Code, v.Exit.Uptime.Round(time.Second), v.Kind, v.Fast, v.Counters.FastCrashes, v.Counters.Crashes)
}
