// SPDX-License-Identifier: MPL-2.0

package supervisor

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota
	// StateLaunching covers settings files, command build and spawn.
	StateLaunching
	// StateRunning means a child process exists and is being watched.
	StateRunning
	// StateExited means the child terminated and is being classified.
	StateExited
	// StateRestarting covers the restart delay and the update step.
	StateRestarting
	// StateStopped is terminal.
	StateStopped
)

// State is the supervision lifecycle state.
type State int32

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateRestarting:
		return "restarting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
