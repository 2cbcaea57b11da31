// SPDX-License-Identifier: MPL-2.0

// Package platform isolates the OS-specific parts of supervising a child:
// termination signals, process-group handling, executable naming and host
// memory probing.
package platform
