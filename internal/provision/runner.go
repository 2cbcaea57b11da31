// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/supervisor"
)

type (
	// Runner runs a helper tool to completion, streaming its output.
	Runner interface {
		Run(ctx context.Context, cmd launch.Command, out io.Writer) error
	}

	// ExecRunner runs tools as child processes. Canceling ctx terminates the tool.
	ExecRunner struct {
		Spawner supervisor.Spawner
	}

	// ToolExitError reports a tool that exited unsuccessfully.
	ToolExitError struct {
		Tool string
		Code int
	}

	// indentWriter prefixes every line with a fixed indent.
	indentWriter struct {
		mu          sync.Mutex
		out         io.Writer
		indent      []byte
		atLineStart bool
	}
)

// Error implements error.
func (e *ToolExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.Code)
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, cmd launch.Command, out io.Writer) error {
	sp := r.Spawner
	if sp == nil {
		sp = supervisor.ExecSpawner{}
	}
	child, err := sp.Spawn(ctx, cmd, out)
	if err != nil {
		return fmt.Errorf("starting %s: %w", cmd.Path, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = child.Terminate() })
	defer stop()

	exit, err := child.Wait()
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", cmd.Path, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if exit.Code != 0 {
		return &ToolExitError{Tool: cmd.Path, Code: exit.Code}
	}
	return nil
}

func newIndentWriter(out io.Writer, indent string) *indentWriter {
	return &indentWriter{out: out, indent: []byte(indent), atLineStart: true}
}

// Write implements io.Writer.
func (w *indentWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	rest := p
	for len(rest) > 0 {
		if w.atLineStart {
			buf.Write(w.indent)
			w.atLineStart = false
		}
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			buf.Write(rest)
			break
		}
		buf.Write(rest[:i+1])
		rest = rest[i+1:]
		w.atLineStart = true
	}
	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
