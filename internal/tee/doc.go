// SPDX-License-Identifier: MPL-2.0

// Package tee duplicates console output into an append-only session log.
//
// The terminal receives bytes unchanged. The log receives the same bytes with
// a "[YYYY-MM-DD HH:MM:SS] " stamp at the start of every logical line, so a
// line assembled from several partial writes carries exactly one stamp.
package tee
