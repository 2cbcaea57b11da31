// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gamekeeper/gamekeeper/internal/launch"
	"github.com/gamekeeper/gamekeeper/internal/platform"
)

// DefaultDrainTimeout bounds how long output is read after the child exits.
// Grandchildren that inherited the pipe can otherwise hold it open forever.
const DefaultDrainTimeout = 2 * time.Second

type (
	// Spawner starts child processes.
	Spawner interface {
		// Spawn starts cmd and forwards its combined output to out line by line.
		// It returns once the OS confirms the process exists.
		Spawn(ctx context.Context, cmd launch.Command, out io.Writer) (Child, error)
	}

	// Child is one running process.
	Child interface {
		Pid() int
		// Terminate asks the child to exit.
		Terminate() error
		// Kill forcibly stops the child.
		Kill() error
		// Wait blocks until the child exits and its output is drained.
		// Exits with a non-zero code or a signal are not errors.
		Wait() (Exit, error)
	}

	// ExecSpawner spawns real processes with os/exec.
	ExecSpawner struct {
		// DrainTimeout overrides DefaultDrainTimeout when positive.
		DrainTimeout time.Duration
	}

	execChild struct {
		cmd   *exec.Cmd
		pipe  *os.File
		out   io.Writer
		drain time.Duration
	}
)

// Spawn implements Spawner. The child gets no stdin and shares one pipe for
// stdout and stderr so ordering between the two is preserved.
func (s ExecSpawner) Spawn(_ context.Context, cmd launch.Command, out io.Writer) (Child, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	c := exec.Command(cmd.Path, cmd.Args...) //nolint:gosec // the command comes from the launch profile
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = pw
	c.Stderr = pw
	platform.PrepareCommand(c)

	if err := c.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	_ = pw.Close()

	drain := s.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	return &execChild{cmd: c, pipe: pr, out: out, drain: drain}, nil
}

func (c *execChild) Pid() int { return c.cmd.Process.Pid }

func (c *execChild) Terminate() error { return platform.Terminate(c.cmd.Process) }

func (c *execChild) Kill() error { return platform.Kill(c.cmd.Process) }

// Wait forwards output and reaps the process concurrently.
func (c *execChild) Wait() (Exit, error) {
	var (
		g       errgroup.Group
		waitErr error
	)
	g.Go(func() error {
		waitErr = c.cmd.Wait()
		// Stop reading once the remaining output has had time to arrive.
		_ = c.pipe.SetReadDeadline(time.Now().Add(c.drain))
		return nil
	})
	g.Go(func() error {
		return ForwardLines(c.pipe, c.out)
	})
	fwdErr := g.Wait()
	_ = c.pipe.Close()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Exit{Code: -1}, waitErr
		}
		return exitFromState(exitErr.ProcessState), nil
	}
	if fwdErr != nil {
		return exitFromState(c.cmd.ProcessState), fwdErr
	}
	return exitFromState(c.cmd.ProcessState), nil
}

func exitFromState(state *os.ProcessState) Exit {
	if state == nil {
		return Exit{Code: -1}
	}
	if sig := platform.ExitSignal(state); sig != 0 {
		return Exit{Code: -sig, Signal: sig}
	}
	return Exit{Code: state.ExitCode()}
}

// ForwardLines copies r to out one line per Write until EOF, a read deadline
// or a closed reader. A trailing partial line is terminated with a newline so
// the next writer to out starts on a fresh line. Write errors do not stop the
// copy, so the writer side of r never blocks.
func ForwardLines(r io.Reader, out io.Writer) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var writeErr error
	for {
		line, err := br.ReadString('\n')
		if err != nil && line != "" && !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if line != "" {
			if _, werr := io.WriteString(out, line); werr != nil && writeErr == nil {
				writeErr = werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, os.ErrClosed) {
				return writeErr
			}
			return err
		}
	}
}
