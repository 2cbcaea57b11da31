// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and a
// list of remediation hints. Guides are longer Markdown write-ups for the
// fatal conditions an operator is most likely to hit (crash loops, a missing
// Java runtime, exhausted host memory); they are rendered with glamour when
// the manager gives up.
package issue
