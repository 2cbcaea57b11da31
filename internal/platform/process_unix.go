// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package platform

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// TerminationSignals lists the signals that request a cooperative shutdown.
func TerminationSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// PrepareCommand places the child in its own process group so signals can be
// delivered to the whole tree and a terminal Ctrl-C reaches only the manager.
func PrepareCommand(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Terminate asks the process group led by p to exit.
func Terminate(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

// Kill forcibly stops the process group led by p.
func Kill(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-p.Pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	// Fall back to the leader alone when the group is not ours.
	if perr := p.Signal(sig); perr != nil && !errors.Is(perr, os.ErrProcessDone) {
		return perr
	}
	return nil
}

// ExitSignal returns the signal number that terminated the process, or 0.
func ExitSignal(state *os.ProcessState) int {
	if state == nil {
		return 0
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0
	}
	return int(ws.Signal())
}

// SIGKILL is the signal number delivered by the OOM killer.
const SIGKILL = int(syscall.SIGKILL)
