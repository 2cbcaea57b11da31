// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/platform"
)

// historyLimit is how many verdicts a CrashLoopError carries.
const historyLimit = 10

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("supervisor already started")

type (
	// Supervisor owns the child lifecycle for one game profile.
	// A Supervisor is single-use.
	Supervisor struct {
		state atomic.Int32

		profile   launch.Profile
		artifacts launch.Artifacts

		policy        Policy
		restartDelay  time.Duration
		shutdownGrace time.Duration

		spawner  Spawner
		clock    Clock
		logger   *log.Logger
		output   io.Writer
		updater  Updater
		metrics  Metrics
		memory   MemoryProbe
		publicIP string

		// Touched only by the Run goroutine.
		counters Counters
		history  []Verdict
		launches int
	}

	waitResult struct {
		exit Exit
		err  error
	}

	// readyWatcher forwards child output and fires once when a line
	// contains one of the ready markers.
	readyWatcher struct {
		next    io.Writer
		markers [][]byte
		fired   atomic.Bool
		onReady func()
	}
)

// New creates a Supervisor for profile, launching from artifacts until an
// Updater replaces them.
func New(profile launch.Profile, artifacts launch.Artifacts, opts ...Option) *Supervisor {
	s := &Supervisor{
		profile:       profile,
		artifacts:     artifacts,
		policy:        DefaultPolicy(),
		restartDelay:  DefaultRestartDelay,
		shutdownGrace: DefaultShutdownGrace,
		spawner:       ExecSpawner{},
		clock:         RealClock{},
		logger:        log.New(io.Discard),
		output:        os.Stdout,
		metrics:       NoopMetrics(),
		memory:        platform.HostMemory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Counters returns the crash counters. Only meaningful after Run returns.
func (s *Supervisor) Counters() Counters {
	return s.counters
}

// Launches returns how many children were spawned. Only meaningful after Run returns.
func (s *Supervisor) Launches() int {
	return s.launches
}

// Run supervises until shutdown is requested through co (or ctx is
// canceled), a crash ceiling is reached, or a launch fails. It returns nil
// for a cooperative shutdown, a *SpawnError for a failed launch and a
// *CrashLoopError for a crash loop.
func (s *Supervisor) Run(ctx context.Context, co *Coordinator) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateLaunching)) {
		return ErrAlreadyStarted
	}
	s.metrics.StateChanged(s.profile.Name(), StateLaunching)
	defer s.setState(StateStopped)

	if co == nil {
		co = NewCoordinator()
	}
	stop := context.AfterFunc(ctx, func() { co.Request("context canceled") })
	defer stop()

	for {
		if co.Requested() {
			s.logger.Info("shutdown requested before launch", "reason", co.Reason())
			return nil
		}

		exit, err := s.runOnce(ctx, co)
		if err != nil {
			s.logger.Error("launch failed", "err", err)
			return err
		}

		s.setState(StateExited)
		if co.Requested() {
			s.logger.Info("server stopped for shutdown", "reason", co.Reason(),
				"code", exit.Code, "uptime", exit.Uptime.Round(time.Second))
			return nil
		}

		verdict := s.policy.Evaluate(&s.counters, exit)
		s.record(verdict)
		s.report(ctx, verdict)

		if verdict.Fatal() {
			return s.crashLoop(verdict)
		}

		s.setState(StateRestarting)
		s.logger.Info("restarting server", "delay", s.restartDelay)
		select {
		case <-s.clock.After(s.restartDelay):
		case <-co.Done():
			s.logger.Info("shutdown requested during restart delay", "reason", co.Reason())
			return nil
		}

		s.update(ctx, co)
		s.setState(StateLaunching)
	}
}

// runOnce launches one child and blocks until it exits. Only launch failures
// are returned as errors.
func (s *Supervisor) runOnce(ctx context.Context, co *Coordinator) (Exit, error) {
	if err := s.profile.Prepare(); err != nil {
		return Exit{}, &SpawnError{Stage: "prepare", Err: err}
	}
	cmd, err := s.profile.Command(s.artifacts)
	if err != nil {
		return Exit{}, &SpawnError{Stage: "command", Err: err}
	}

	s.logger.Info("launching server", "game", s.profile.Name(), "cmd", cmd.Path)
	s.logger.Debug("launch command", "argv", cmd.String(), "dir", cmd.Dir)

	out := s.watchReady()
	start := s.clock.Now()
	child, err := s.spawner.Spawn(ctx, cmd, out)
	if err != nil {
		return Exit{}, &SpawnError{Stage: "spawn", Path: cmd.Path, Err: err}
	}
	s.launches++
	s.setState(StateRunning)
	s.metrics.Launched(s.profile.Name())
	s.logger.Info("server running", "pid", child.Pid())

	waitCh := make(chan waitResult, 1)
	go func() {
		e, werr := child.Wait()
		waitCh <- waitResult{exit: e, err: werr}
	}()

	var res waitResult
	select {
	case res = <-waitCh:
	case <-co.Done():
		res = s.stopChild(child, waitCh)
	}

	if res.err != nil {
		s.logger.Warn("error while waiting for server", "err", res.err)
	}
	res.exit.Uptime = s.clock.Now().Sub(start)
	return res.exit, nil
}

// stopChild terminates child, waits up to the shutdown grace and then kills it.
func (s *Supervisor) stopChild(child Child, waitCh <-chan waitResult) waitResult {
	s.logger.Info("stopping server", "pid", child.Pid(), "grace", s.shutdownGrace)
	if err := child.Terminate(); err != nil {
		s.logger.Warn("terminate failed", "err", err)
	}

	select {
	case res := <-waitCh:
		return res
	case <-s.clock.After(s.shutdownGrace):
	}

	s.logger.Warn("server did not exit in time; killing", "grace", s.shutdownGrace)
	if err := child.Kill(); err != nil {
		s.logger.Warn("kill failed", "err", err)
	}
	return <-waitCh
}

func (s *Supervisor) watchReady() io.Writer {
	markers := s.profile.ReadyMarkers()
	if len(markers) == 0 {
		return s.output
	}
	w := &readyWatcher{next: s.output, onReady: func() {
		s.logger.Info(launch.ReadyMessage(s.publicIP, s.profile.Port()))
	}}
	for _, m := range markers {
		if m != "" {
			w.markers = append(w.markers, []byte(m))
		}
	}
	return w
}

// Write implements io.Writer.
func (w *readyWatcher) Write(p []byte) (int, error) {
	if !w.fired.Load() && w.matches(p) && w.fired.CompareAndSwap(false, true) {
		defer w.onReady()
	}
	return w.next.Write(p)
}

func (w *readyWatcher) matches(p []byte) bool {
	for _, m := range w.markers {
		if bytes.Contains(p, m) {
			return true
		}
	}
	return false
}

func (s *Supervisor) record(v Verdict) {
	s.history = append(s.history, v)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.metrics.Exited(s.profile.Name(), v)
}

func (s *Supervisor) report(ctx context.Context, v Verdict) {
	kv := []any{
		"code", v.Exit.Code,
		"uptime", v.Exit.Uptime.Round(time.Second),
		"fast_crashes", v.Counters.FastCrashes,
		"crashes", v.Counters.Crashes,
	}
	switch v.Kind {
	case KindClean:
		s.logger.Info("server exited cleanly", kv...)
	case KindSignaled:
		s.logger.Warn("server killed by signal", append(kv, "signal", v.Exit.Signal)...)
	default:
		s.logger.Warn("server crashed", kv...)
	}

	if v.LikelyOOM {
		hint := []any{"advice", s.profile.OOMAdvice()}
		if s.memory != nil {
			if stats, err := s.memory(ctx); err == nil {
				hint = append(hint, "memory", stats.String())
			}
		}
		s.logger.Warn("exit looks like an out-of-memory kill", hint...)
	}
}

func (s *Supervisor) crashLoop(v Verdict) error {
	err := &CrashLoopError{
		Counter: v.Tripped,
		History: append([]Verdict(nil), s.history...),
	}
	if v.Tripped == CounterFast {
		err.Count, err.Ceiling = v.Counters.FastCrashes, s.policy.MaxFastCrashes
	} else {
		err.Count, err.Ceiling = v.Counters.Crashes, s.policy.MaxCrashes
	}
	s.logger.Error("crash limit reached; not restarting", "counter", v.Tripped, "count", err.Count, "limit", err.Ceiling)
	return err
}

// update refreshes artifacts. Failures keep the previous artifacts. A
// shutdown request cancels a running update.
func (s *Supervisor) update(ctx context.Context, co *Coordinator) {
	if s.updater == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-co.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	arts, err := s.updater.Update(ctx)
	s.metrics.Updated(s.profile.Name(), err)
	if err != nil {
		s.logger.Warn("update failed; relaunching previous install", "err", err)
		return
	}
	s.artifacts = arts
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.StateChanged(s.profile.Name(), st)
}
