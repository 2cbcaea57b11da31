// SPDX-License-Identifier: MPL-2.0

// Package provision installs and refreshes everything a game profile needs
// before launch. It combines the artifact store with the acquirer: cached
// artifacts that still exist on disk are reused without network access, and
// fresh acquisitions are committed back to the store.
package provision
