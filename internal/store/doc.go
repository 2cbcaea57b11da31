// SPDX-License-Identifier: MPL-2.0

// Package store remembers where acquired artifacts live on disk.
//
// The index is a small TOML file keyed by artifact name. An entry is only
// trusted while its path still exists, so deleting an install directory is
// enough to force a fresh download.
package store
