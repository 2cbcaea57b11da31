// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FindArtifact searches root recursively for a regular file named name and
// returns the shallowest match. Ties break lexically.
func FindArtifact(root, name string) (string, error) {
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, path.Join("**", name))
	if err != nil {
		return "", fmt.Errorf("searching %s: %w", root, err)
	}

	matches = slices.DeleteFunc(matches, func(m string) bool {
		info, err := fs.Stat(fsys, m)
		return err != nil || !info.Mode().IsRegular()
	})
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s under %s", ErrArtifactNotFound, name, root)
	}

	slices.SortFunc(matches, func(a, b string) int {
		if da, db := strings.Count(a, "/"), strings.Count(b, "/"); da != db {
			return da - db
		}
		return strings.Compare(a, b)
	})
	return filepath.Join(root, filepath.FromSlash(matches[0])), nil
}

// MatchAsset reports whether name matches a glob pattern such as
// "OpenJDK21U-jre_x64_linux_hotspot_*.tar.gz".
func MatchAsset(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
