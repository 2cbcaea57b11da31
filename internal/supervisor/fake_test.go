// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/platform"
	"github.com/gamekeeper/gamekeeper/internal/testutil"
)

var errScriptsExhausted = errors.New("no more scripted runs")

type (
	// script is one scripted child run.
	script struct {
		uptime time.Duration
		code   int
		signal int
		output string
		// block makes Wait return only after Terminate or Kill.
		block bool
		// stubborn makes Terminate a no-op.
		stubborn bool
	}

	fakeSpawner struct {
		clock   *testutil.FakeClock
		scripts []script

		mu       sync.Mutex
		spawned  []launch.Command
		children []*fakeChild
		started  chan *fakeChild
	}

	fakeChild struct {
		s     script
		clock *testutil.FakeClock
		out   io.Writer

		terminated atomic.Bool
		killed     atomic.Bool
		stop       chan Exit
	}

	fakeProfile struct {
		markers    []string
		prepareErr error
		commandErr error
		prepares   atomic.Int32
	}
)

func newFakeSpawner(clock *testutil.FakeClock, scripts ...script) *fakeSpawner {
	return &fakeSpawner{clock: clock, scripts: scripts, started: make(chan *fakeChild, len(scripts))}
}

func (f *fakeSpawner) Spawn(_ context.Context, cmd launch.Command, out io.Writer) (Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.spawned = append(f.spawned, cmd)
	if len(f.children) >= len(f.scripts) {
		return nil, errScriptsExhausted
	}
	c := &fakeChild{
		s:     f.scripts[len(f.children)],
		clock: f.clock,
		out:   out,
		stop:  make(chan Exit, 1),
	}
	f.children = append(f.children, c)
	f.started <- c
	return c, nil
}

func (f *fakeSpawner) commands() []launch.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]launch.Command(nil), f.spawned...)
}

func (c *fakeChild) Pid() int { return 4242 }

func (c *fakeChild) Terminate() error {
	c.terminated.Store(true)
	if !c.s.stubborn {
		c.finish(Exit{Code: -15, Signal: 15})
	}
	return nil
}

func (c *fakeChild) Kill() error {
	c.killed.Store(true)
	c.finish(Exit{Code: -platform.SIGKILL, Signal: platform.SIGKILL})
	return nil
}

func (c *fakeChild) finish(e Exit) {
	select {
	case c.stop <- e:
	default:
	}
}

func (c *fakeChild) Wait() (Exit, error) {
	if c.s.output != "" {
		_, _ = io.WriteString(c.out, c.s.output)
	}
	if c.s.block {
		return <-c.stop, nil
	}
	c.clock.Advance(c.s.uptime)
	return Exit{Code: c.s.code, Signal: c.s.signal}, nil
}

func (p *fakeProfile) Name() string { return "fake" }

func (p *fakeProfile) Prepare() error {
	p.prepares.Add(1)
	return p.prepareErr
}

func (p *fakeProfile) Command(a launch.Artifacts) (launch.Command, error) {
	if p.commandErr != nil {
		return launch.Command{}, p.commandErr
	}
	return launch.Command{Path: a.Runtime, Args: []string{a.Server}}, nil
}

func (p *fakeProfile) ReadyMarkers() []string { return p.markers }

func (p *fakeProfile) Port() int { return 25565 }

func (p *fakeProfile) OOMAdvice() string { return "give it more memory" }

func fakeMemory(context.Context) (platform.MemoryStats, error) {
	return platform.MemoryStats{Total: 4 << 30, Available: 1 << 30}, nil
}
