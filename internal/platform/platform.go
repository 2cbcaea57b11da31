// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"runtime"
	"strings"
)

// Windows is the GOOS value for Windows.
const Windows = "windows"

// windowsReservedNames cannot be used as file names on Windows regardless of extension.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindows reports whether the manager runs on Windows.
func IsWindows() bool {
	return runtime.GOOS == Windows
}

// IsWindowsReservedName reports whether name (ignoring its extension) is a
// reserved device name on Windows.
func IsWindowsReservedName(name string) bool {
	upper := strings.ToUpper(name)
	if idx := strings.LastIndex(upper, "."); idx != -1 {
		upper = upper[:idx]
	}
	return windowsReservedNames[upper]
}

// ExecutableNameFor appends ".exe" to base when goos is Windows.
func ExecutableNameFor(goos, base string) string {
	if goos == Windows && !strings.HasSuffix(strings.ToLower(base), ".exe") {
		return base + ".exe"
	}
	return base
}
