// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package supervisor

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gamekeeper/gamekeeper/internal/launch"
)

func shCommand(script string) launch.Command {
	return launch.Command{Path: "/bin/sh", Args: []string{"-c", script}, Env: os.Environ()}
}

func TestExecSpawner_CombinedOutputAndExitCode(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	child, err := ExecSpawner{}.Spawn(context.Background(), shCommand("echo out; echo err >&2; printf partial; exit 3"), &out)
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if child.Pid() <= 0 {
		t.Errorf("Pid() = %d", child.Pid())
	}

	exit, err := child.Wait()
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if exit.Code != 3 || exit.Signal != 0 {
		t.Errorf("exit = %+v, want code 3", exit)
	}
	if got := out.String(); got != "out\nerr\npartial\n" {
		t.Errorf("output = %q", got)
	}
}

func TestExecSpawner_Signal(t *testing.T) {
	t.Parallel()

	child, err := ExecSpawner{}.Spawn(context.Background(), shCommand("kill -9 $$"), &syncBuffer{})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	exit, err := child.Wait()
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if exit.Signal != int(syscall.SIGKILL) || exit.Code != -int(syscall.SIGKILL) {
		t.Errorf("exit = %+v, want SIGKILL", exit)
	}
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := ExecSpawner{}.Spawn(context.Background(), launch.Command{Path: "/nonexistent/server"}, &syncBuffer{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Spawn() error = %v, want not-exist", err)
	}
}

func TestExecSpawner_DrainTimeoutWithLingeringGrandchild(t *testing.T) {
	t.Parallel()

	// The background sleep keeps the pipe open after the shell exits.
	child, err := ExecSpawner{DrainTimeout: 100 * time.Millisecond}.Spawn(context.Background(),
		shCommand("echo bye; sleep 30 & exit 0"), &syncBuffer{})
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	t.Cleanup(func() { _ = child.Kill() })

	done := make(chan struct{})
	go func() {
		_, _ = child.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("Wait() blocked on a pipe held by a grandchild")
	}
}

// notifyWriter closes ready the first time a write contains marker.
type notifyWriter struct {
	syncBuffer
	marker string
	once   sync.Once
	ready  chan struct{}
}

func (w *notifyWriter) Write(p []byte) (int, error) {
	n, err := w.syncBuffer.Write(p)
	if strings.Contains(string(p), w.marker) {
		w.once.Do(func() { close(w.ready) })
	}
	return n, err
}

type shProfile struct {
	fakeProfile
	script string
}

func (p *shProfile) Command(launch.Artifacts) (launch.Command, error) {
	return shCommand(p.script), nil
}

func TestRun_RealChildIgnoringTerminateIsKilled(t *testing.T) {
	t.Parallel()

	out := &notifyWriter{marker: "trapped", ready: make(chan struct{})}
	profile := &shProfile{script: `trap "" TERM; echo trapped; while :; do sleep 1; done`}
	sup := New(profile, launch.Artifacts{},
		WithOutput(out),
		WithLogger(log.New(&syncBuffer{})),
		WithShutdownGrace(200*time.Millisecond),
		WithSpawner(ExecSpawner{DrainTimeout: 100 * time.Millisecond}),
		WithMemoryProbe(fakeMemory),
	)

	co := NewCoordinator()
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Run(context.Background(), co) }()

	select {
	case <-out.ready:
	case <-time.After(waitTimeout):
		t.Fatal("child never reported its trap")
	}

	start := time.Now()
	co.Request("test")
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run() did not return after shutdown")
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("Run() returned after %v, before the grace period", elapsed)
	}
	if sup.Launches() != 1 {
		t.Errorf("Launches() = %d, want 1", sup.Launches())
	}
}
