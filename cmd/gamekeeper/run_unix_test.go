// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gamekeeper/gamekeeper/internal/issue"
	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/provision"
	"github.com/gamekeeper/gamekeeper/internal/supervisor"
	"github.com/gamekeeper/gamekeeper/internal/testutil"
)

// fakeServer writes a shell script standing in for java.
func fakeServer(t *testing.T, dir, body string) launch.Artifacts {
	t.Helper()
	java := filepath.Join(dir, "fake-java")
	testutil.MustWriteFile(t, java, []byte("#!/bin/sh\n"+body), 0o755)
	return launch.Artifacts{Runtime: java, Server: filepath.Join(dir, launch.ServerJarName)}
}

func TestRunServer_CrashLoopExitsWithCode1(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prov := &fakeProvisioner{artifacts: fakeServer(t, dir, "echo 'server starting'\nexit 1\n")}
	var stdout, stderr syncBuffer
	app := newTestApp(t, prov, &stdout, &stderr)

	err := app.runServer(context.Background(), map[string]any{
		"game":                     "minecraft",
		"install_dir":              dir,
		"supervisor.restart_delay": "0s",
	})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("runServer() error = %v, want ExitError code 1", err)
	}
	var loop *supervisor.CrashLoopError
	if !errors.As(err, &loop) {
		t.Fatalf("error does not wrap CrashLoopError: %v", err)
	}
	// Three non-zero exits trip the total ceiling before five fast crashes do.
	if loop.Counter != supervisor.CounterTotal || loop.Count != 3 {
		t.Errorf("crash loop = %s after %d, want total after 3", loop.Counter, loop.Count)
	}
	if got := prov.Updates(); got != 2 {
		t.Errorf("updates = %d, want one before each of 2 restarts", got)
	}

	logText := testutil.MustReadFile(t, filepath.Join(dir, "server_log.txt"))
	for _, want := range []string{"Log session started", "server starting", "203.0.113.7:25565", "crash loop", "The server keeps crashing"} {
		if !strings.Contains(logText, want) {
			t.Errorf("session log missing %q", want)
		}
	}
	if !strings.Contains(stdout.String(), "server starting") {
		t.Error("child output did not reach the console")
	}
	if !strings.Contains(testutil.MustReadFile(t, filepath.Join(dir, launch.EULAFileName)), "eula=true") {
		t.Error("eula.txt was not written before launch")
	}
}

func TestRunServer_ShutdownIsClean(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prov := &fakeProvisioner{artifacts: fakeServer(t, dir,
		"echo 'Done (1.234s)! For help, type \"help\"'\nexec sleep 30\n")}
	var stdout, stderr syncBuffer
	app := newTestApp(t, prov, &stdout, &stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- app.runServer(ctx, map[string]any{"game": "minecraft", "install_dir": dir})
	}()

	ready := launch.ReadyMessage("203.0.113.7", 25565)
	deadline := time.Now().Add(10 * time.Second)
	for !strings.Contains(stdout.String(), ready) {
		if time.Now().After(deadline) {
			t.Fatalf("server never reported ready; output:\n%s", stdout.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer() error = %v, want nil after shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("runServer did not return after cancellation")
	}

	logText := testutil.MustReadFile(t, filepath.Join(dir, "server_log.txt"))
	if !strings.Contains(logText, "shutdown complete") {
		t.Errorf("session log missing shutdown message:\n%s", logText)
	}
	if prov.Updates() != 0 {
		t.Errorf("updates = %d, want none after a shutdown", prov.Updates())
	}
}

func TestRunServer_PrepareFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prov := &fakeProvisioner{prepareErr: issue.NewErrorContext().
		WithOperation("find a Java runtime").
		WithGuide(issue.JavaMissingGuide).
		Wrap(provision.ErrJREDeclined).
		BuildError()}
	var stdout, stderr syncBuffer
	app := newTestApp(t, prov, &stdout, &stderr)

	err := app.runServer(context.Background(), map[string]any{"game": "minecraft", "install_dir": dir})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("runServer() error = %v, want ExitError code 1", err)
	}
	if !errors.Is(err, provision.ErrJREDeclined) {
		t.Errorf("error does not wrap ErrJREDeclined: %v", err)
	}

	logText := testutil.MustReadFile(t, filepath.Join(dir, "server_log.txt"))
	for _, want := range []string{"failed to find a Java runtime", "No Java runtime found"} {
		if !strings.Contains(logText, want) {
			t.Errorf("session log missing %q:\n%s", want, logText)
		}
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prov := &fakeProvisioner{artifacts: launch.Artifacts{Runtime: "/usr/bin/java", Server: filepath.Join(dir, "server.jar")}}
	var stdout, stderr syncBuffer
	app := newTestApp(t, prov, &stdout, &stderr)

	if err := app.fetch(context.Background(), map[string]any{"install_dir": dir}); err != nil {
		t.Fatalf("fetch() error: %v", err)
	}
	if !strings.Contains(stdout.String(), "minecraft is installed in "+dir) {
		t.Errorf("stdout = %q", stdout.String())
	}
	if !strings.Contains(testutil.MustReadFile(t, filepath.Join(dir, "server_log.txt")), "artifacts ready") {
		t.Error("session log missing fetch result")
	}
}
