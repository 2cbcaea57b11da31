// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/platform"
)

const (
	// DefaultRestartDelay is the pause between an exit and the next launch.
	DefaultRestartDelay = 15 * time.Second
	// DefaultShutdownGrace is how long a terminated child may take to exit
	// before it is killed.
	DefaultShutdownGrace = 30 * time.Second
)

type (
	// Updater refreshes artifacts before a restart.
	Updater interface {
		Update(ctx context.Context) (launch.Artifacts, error)
	}

	// UpdaterFunc adapts a function to Updater.
	UpdaterFunc func(ctx context.Context) (launch.Artifacts, error)

	// MemoryProbe reads host memory for out-of-memory hints.
	MemoryProbe func(ctx context.Context) (platform.MemoryStats, error)

	// Option configures a Supervisor.
	Option func(*Supervisor)
)

// Update implements Updater.
func (f UpdaterFunc) Update(ctx context.Context) (launch.Artifacts, error) { return f(ctx) }

// WithPolicy sets the crash ceilings.
func WithPolicy(p Policy) Option {
	return func(s *Supervisor) { s.policy = p }
}

// WithRestartDelay sets the pause before each restart.
func WithRestartDelay(d time.Duration) Option {
	return func(s *Supervisor) { s.restartDelay = d }
}

// WithShutdownGrace sets the wait between terminate and kill.
func WithShutdownGrace(d time.Duration) Option {
	return func(s *Supervisor) { s.shutdownGrace = d }
}

// WithSpawner replaces the process spawner.
func WithSpawner(sp Spawner) Option {
	return func(s *Supervisor) { s.spawner = sp }
}

// WithClock replaces the time source.
func WithClock(c Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithLogger sets the supervisor's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// WithOutput sets where child output is forwarded.
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) { s.output = w }
}

// WithUpdater sets the restart-time artifact refresh.
func WithUpdater(u Updater) Option {
	return func(s *Supervisor) { s.updater = u }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithPublicIP sets the address shown in the ready message.
func WithPublicIP(ip string) Option {
	return func(s *Supervisor) { s.publicIP = ip }
}

// WithMemoryProbe replaces the host memory reader used for OOM hints.
func WithMemoryProbe(p MemoryProbe) Option {
	return func(s *Supervisor) { s.memory = p }
}
