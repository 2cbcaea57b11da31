// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests: a manually
// advanced clock, environment variable management, and builders for the
// archive formats the acquirer understands.
package testutil
