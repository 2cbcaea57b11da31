// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"math/rand/v2"
	"os"
	"runtime"
)

type (
	// Option configures a profile.
	Option func(*settings)

	settings struct {
		goos    string
		environ func() []string
		seed    func() int
	}
)

// WithGOOS overrides the target operating system.
func WithGOOS(goos string) Option {
	return func(s *settings) { s.goos = goos }
}

// WithEnviron overrides the base environment inherited by the child.
func WithEnviron(environ func() []string) Option {
	return func(s *settings) { s.environ = environ }
}

// WithSeedSource overrides the random world seed generator.
func WithSeedSource(seed func() int) Option {
	return func(s *settings) { s.seed = seed }
}

func newSettings(opts []Option) settings {
	s := settings{
		goos:    runtime.GOOS,
		environ: os.Environ,
		seed:    func() int { return 1 + rand.IntN(maxSeed) },
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
