// SPDX-License-Identifier: MPL-2.0

//go:build windows

package platform

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// TerminationSignals lists the signals that request a cooperative shutdown.
// Ctrl-C and Ctrl-Break both arrive as os.Interrupt; console close arrives as SIGTERM.
func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

// PrepareCommand is a no-op on Windows.
func PrepareCommand(*exec.Cmd) {}

// Terminate stops p. Windows has no graceful signal for console children.
func Terminate(p *os.Process) error {
	return Kill(p)
}

// Kill forcibly stops p.
func Kill(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// ExitSignal always returns 0 on Windows.
func ExitSignal(*os.ProcessState) int {
	return 0
}

// SIGKILL mirrors the Unix value so exit classification stays portable.
const SIGKILL = 9
