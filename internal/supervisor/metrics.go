// SPDX-License-Identifier: MPL-2.0

package supervisor

type (
	// Metrics receives supervision events. Implementations must be safe for
	// concurrent use.
	Metrics interface {
		// StateChanged is called on every transition.
		StateChanged(game string, s State)
		// Launched is called after a successful spawn.
		Launched(game string)
		// Exited is called with every classified exit.
		Exited(game string, v Verdict)
		// Updated is called after each restart-time update attempt.
		Updated(game string, err error)
	}

	noopMetrics struct{}
)

// NoopMetrics returns a Metrics that discards everything.
func NoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) StateChanged(string, State) {}
func (noopMetrics) Launched(string)            {}
func (noopMetrics) Exited(string, Verdict)     {}
func (noopMetrics) Updated(string, error)      {}
