// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/testutil"
)

const waitTimeout = 5 * time.Second

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	clock   *testutil.FakeClock
	spawner *fakeSpawner
	profile *fakeProfile
	logs    *syncBuffer
	output  *syncBuffer
	sup     *Supervisor
}

func newHarness(scripts []script, opts ...Option) *harness {
	h := &harness{
		clock:   testutil.NewFakeClock(time.Time{}),
		profile: &fakeProfile{},
		logs:    &syncBuffer{},
		output:  &syncBuffer{},
	}
	h.spawner = newFakeSpawner(h.clock, scripts...)
	base := []Option{
		WithClock(h.clock),
		WithSpawner(h.spawner),
		WithLogger(log.New(h.logs)),
		WithOutput(h.output),
		WithRestartDelay(0),
		WithMemoryProbe(fakeMemory),
	}
	h.sup = New(h.profile, launch.Artifacts{Runtime: "/srv/bin/server", Server: "v1"}, append(base, opts...)...)
	return h
}

func repeat(n int, s script) []script {
	out := make([]script, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func (h *harness) runAsync(t *testing.T, ctx context.Context, co *Coordinator) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- h.sup.Run(ctx, co) }()
	return errCh
}

func awaitChild(t *testing.T, h *harness) *fakeChild {
	t.Helper()
	select {
	case c := <-h.spawner.started:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for spawn")
		return nil
	}
}

func awaitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for Run to return")
		return nil
	}
}

func TestRun_FastCrashCeiling(t *testing.T) {
	t.Parallel()

	h := newHarness(repeat(10, script{uptime: 5 * time.Second}))
	err := h.sup.Run(context.Background(), NewCoordinator())

	var cle *CrashLoopError
	if !errors.As(err, &cle) {
		t.Fatalf("Run() = %v, want *CrashLoopError", err)
	}
	if cle.Counter != CounterFast || cle.Count != 5 || cle.Ceiling != 5 {
		t.Errorf("CrashLoopError = %+v, want fast 5/5", cle)
	}
	if got := h.sup.Launches(); got != 5 {
		t.Errorf("Launches() = %d, want 5", got)
	}
	if len(cle.History) != 5 {
		t.Errorf("History has %d verdicts, want 5", len(cle.History))
	}
	if h.sup.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", h.sup.State())
	}
}

func TestRun_LongRunResetsFastCounter(t *testing.T) {
	t.Parallel()

	var scripts []script
	for _, secs := range []int{5, 5, 70, 5, 5} {
		scripts = append(scripts, script{uptime: time.Duration(secs) * time.Second})
	}
	h := newHarness(scripts)

	err := h.sup.Run(context.Background(), NewCoordinator())

	// Every scripted run was restarted; the loop only ends when the fake
	// spawner runs out of scripts.
	var se *SpawnError
	if !errors.As(err, &se) || !errors.Is(err, errScriptsExhausted) {
		t.Fatalf("Run() = %v, want SpawnError after scripts ran out", err)
	}
	if got := h.sup.Counters().FastCrashes; got != 2 {
		t.Errorf("FastCrashes = %d, want 2", got)
	}
	if got := h.sup.Launches(); got != 5 {
		t.Errorf("Launches() = %d, want 5", got)
	}
}

func TestRun_TotalCrashCeiling(t *testing.T) {
	t.Parallel()

	h := newHarness(repeat(10, script{uptime: 2 * time.Minute, code: 1}))
	err := h.sup.Run(context.Background(), NewCoordinator())

	var cle *CrashLoopError
	if !errors.As(err, &cle) {
		t.Fatalf("Run() = %v, want *CrashLoopError", err)
	}
	if cle.Counter != CounterTotal || cle.Count != 3 {
		t.Errorf("CrashLoopError = %+v, want total 3", cle)
	}
	if got := h.sup.Launches(); got != 3 {
		t.Errorf("Launches() = %d, want 3", got)
	}
	if !strings.Contains(h.logs.String(), "crash limit reached") {
		t.Errorf("logs missing crash limit line:\n%s", h.logs)
	}
}

func TestRun_CleanExitResetsTotalCounter(t *testing.T) {
	t.Parallel()

	var scripts []script
	for _, code := range []int{1, 1, 0, 1, 1} {
		scripts = append(scripts, script{uptime: 2 * time.Minute, code: code})
	}
	h := newHarness(scripts)

	err := h.sup.Run(context.Background(), NewCoordinator())
	if !errors.Is(err, errScriptsExhausted) {
		t.Fatalf("Run() = %v, want scripts to run out before any ceiling", err)
	}
	if got := h.sup.Counters().Crashes; got != 2 {
		t.Errorf("Crashes = %d, want 2", got)
	}
}

func TestRun_ShutdownWhileRunning_Graceful(t *testing.T) {
	t.Parallel()

	h := newHarness([]script{{block: true}})
	co := NewCoordinator()
	errCh := h.runAsync(t, context.Background(), co)

	child := awaitChild(t, h)
	co.Request("test")

	if err := awaitErr(t, errCh); err != nil {
		t.Fatalf("Run() = %v, want nil for cooperative shutdown", err)
	}
	if !child.terminated.Load() {
		t.Error("child was not asked to terminate")
	}
	if child.killed.Load() {
		t.Error("child that exited on terminate was killed")
	}
	if h.sup.Launches() != 1 {
		t.Errorf("Launches() = %d, want no restart after shutdown", h.sup.Launches())
	}
}

func TestRun_ShutdownWhileRunning_KillAfterGrace(t *testing.T) {
	t.Parallel()

	h := newHarness([]script{{block: true, stubborn: true}}, WithShutdownGrace(30*time.Second))
	co := NewCoordinator()
	errCh := h.runAsync(t, context.Background(), co)

	child := awaitChild(t, h)
	co.Request("test")

	if !h.clock.BlockUntilWaiters(1, waitTimeout) {
		t.Fatal("supervisor never started the grace timer")
	}
	if child.killed.Load() {
		t.Fatal("child killed before the grace period elapsed")
	}
	h.clock.Advance(30 * time.Second)

	if err := awaitErr(t, errCh); err != nil {
		t.Fatalf("Run() = %v, want nil for cooperative shutdown", err)
	}
	if !child.terminated.Load() || !child.killed.Load() {
		t.Errorf("terminated=%v killed=%v, want both", child.terminated.Load(), child.killed.Load())
	}
	if got := h.sup.Counters(); got != (Counters{}) {
		t.Errorf("Counters() = %+v, want zero after a cooperative shutdown", got)
	}
	logs := h.logs.String()
	for _, unwanted := range []string{"out-of-memory", "killed by signal"} {
		if strings.Contains(logs, unwanted) {
			t.Errorf("logs contain %q after a cooperative shutdown:\n%s", unwanted, logs)
		}
	}
	if !strings.Contains(logs, "server stopped for shutdown") {
		t.Errorf("logs missing shutdown line:\n%s", logs)
	}
}

func TestRun_ShutdownDuringRestartDelay(t *testing.T) {
	t.Parallel()

	h := newHarness(repeat(3, script{uptime: 5 * time.Second, code: 1}), WithRestartDelay(15*time.Second))
	co := NewCoordinator()
	errCh := h.runAsync(t, context.Background(), co)

	awaitChild(t, h)
	if !h.clock.BlockUntilWaiters(1, waitTimeout) {
		t.Fatal("supervisor never started the restart delay")
	}
	co.Request("test")

	if err := awaitErr(t, errCh); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if got := h.sup.Launches(); got != 1 {
		t.Errorf("Launches() = %d, want 1", got)
	}
}

func TestRun_RestartWaitsForDelay(t *testing.T) {
	t.Parallel()

	h := newHarness(repeat(2, script{uptime: 2 * time.Minute}), WithRestartDelay(15*time.Second))
	errCh := h.runAsync(t, context.Background(), NewCoordinator())

	awaitChild(t, h)
	if !h.clock.BlockUntilWaiters(1, waitTimeout) {
		t.Fatal("supervisor never started the restart delay")
	}
	select {
	case <-h.spawner.started:
		t.Fatal("relaunched before the restart delay elapsed")
	default:
	}

	h.clock.Advance(15 * time.Second)
	awaitChild(t, h)
	if !h.clock.BlockUntilWaiters(1, waitTimeout) {
		t.Fatal("supervisor never started the second restart delay")
	}
	h.clock.Advance(15 * time.Second)

	if err := awaitErr(t, errCh); !errors.Is(err, errScriptsExhausted) {
		t.Fatalf("Run() = %v, want scripts exhausted", err)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	t.Parallel()

	h := newHarness([]script{{block: true}})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := h.runAsync(t, ctx, nil)

	awaitChild(t, h)
	cancel()

	if err := awaitErr(t, errCh); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
}

func TestRun_UpdateBeforeRestart(t *testing.T) {
	t.Parallel()

	calls := 0
	updater := UpdaterFunc(func(context.Context) (launch.Artifacts, error) {
		calls++
		if calls == 2 {
			return launch.Artifacts{}, errors.New("mirror offline")
		}
		return launch.Artifacts{Runtime: "/srv/bin/server", Server: "v2"}, nil
	})
	h := newHarness(repeat(3, script{uptime: 2 * time.Minute}), WithUpdater(updater))

	err := h.sup.Run(context.Background(), NewCoordinator())
	if !errors.Is(err, errScriptsExhausted) {
		t.Fatalf("Run() = %v, want scripts exhausted", err)
	}

	cmds := h.spawner.commands()
	var got []string
	for _, c := range cmds {
		got = append(got, c.Args[0])
	}
	// The failed second update keeps v2 for the fourth spawn attempt.
	want := []string{"v1", "v2", "v2", "v2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("launched servers = %v, want %v", got, want)
	}
	if !strings.Contains(h.logs.String(), "update failed") {
		t.Errorf("logs missing update warning:\n%s", h.logs)
	}
	if got := h.profile.prepares.Load(); got != 4 {
		t.Errorf("Prepare called %d times, want once per launch", got)
	}
}

func TestRun_SpawnFailureIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	err := h.sup.Run(context.Background(), NewCoordinator())

	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("Run() = %v, want *SpawnError", err)
	}
	if se.Stage != "spawn" || se.Path != "/srv/bin/server" {
		t.Errorf("SpawnError = %+v", se)
	}
	if h.sup.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", h.sup.State())
	}
}

func TestRun_PrepareFailureIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(repeat(1, script{}))
	h.profile.prepareErr = errors.New("disk full")

	err := h.sup.Run(context.Background(), NewCoordinator())
	var se *SpawnError
	if !errors.As(err, &se) || se.Stage != "prepare" {
		t.Fatalf("Run() = %v, want prepare SpawnError", err)
	}
	if h.sup.Launches() != 0 {
		t.Errorf("Launches() = %d, want 0", h.sup.Launches())
	}
}

func TestRun_AlreadyStarted(t *testing.T) {
	t.Parallel()

	h := newHarness(nil)
	_ = h.sup.Run(context.Background(), nil)
	if err := h.sup.Run(context.Background(), nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run() = %v, want ErrAlreadyStarted", err)
	}
}

func TestRun_ShutdownBeforeLaunch(t *testing.T) {
	t.Parallel()

	h := newHarness(repeat(1, script{}))
	co := NewCoordinator()
	co.Request("early")

	if err := h.sup.Run(context.Background(), co); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if h.sup.Launches() != 0 {
		t.Errorf("Launches() = %d, want 0", h.sup.Launches())
	}
}

func TestRun_ReadyMessageOncePerLaunch(t *testing.T) {
	t.Parallel()

	out := "Loading libraries\nDone (3.2s)! For help, type \"help\"\nFor help again\n"
	h := newHarness(repeat(2, script{uptime: 2 * time.Minute, output: out}), WithPublicIP("203.0.113.7"))
	h.profile.markers = []string{"Done (", "For help"}

	_ = h.sup.Run(context.Background(), NewCoordinator())

	if got := strings.Count(h.logs.String(), "Join at: 203.0.113.7:25565"); got != 2 {
		t.Errorf("ready message logged %d times, want once per launch:\n%s", got, h.logs)
	}
	if got := h.output.String(); got != out+out {
		t.Errorf("child output = %q, want it forwarded verbatim", got)
	}
}

func TestRun_OOMHint(t *testing.T) {
	t.Parallel()

	h := newHarness(repeat(1, script{uptime: 2 * time.Minute, code: 137}))
	_ = h.sup.Run(context.Background(), NewCoordinator())

	logs := h.logs.String()
	for _, want := range []string{"out-of-memory", "give it more memory", "4.0 GiB total"} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %q:\n%s", want, logs)
		}
	}
}
