// SPDX-License-Identifier: MPL-2.0

// Package supervisor runs one game server child process at a time: it
// launches the child, forwards its output, classifies each exit against a
// two-counter crash policy, and either restarts after a delay or stops.
//
// Cooperative shutdown is handled by a Coordinator that turns termination
// signals into a graceful terminate, a bounded wait and a forced kill.
package supervisor
