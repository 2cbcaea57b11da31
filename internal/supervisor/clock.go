// SPDX-License-Identifier: MPL-2.0

package supervisor

import "time"

type (
	// Clock is the time source for uptime and delays.
	Clock interface {
		Now() time.Time
		After(d time.Duration) <-chan time.Time
	}

	// RealClock uses the time package.
	RealClock struct{}
)

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// After implements Clock.
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
