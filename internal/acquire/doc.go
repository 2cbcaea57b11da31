// SPDX-License-Identifier: MPL-2.0

// Package acquire downloads an artifact from an ordered list of candidate
// sources and installs it atomically.
//
// Candidates are tried strictly in order and the first success wins. Each
// attempt works in a private temp directory next to the destination, so a
// failed attempt never leaves partial files behind and a successful one is
// moved into place with a rename. Archive extraction refuses absolute member
// paths and ".." segments.
package acquire
