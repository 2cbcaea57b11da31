// SPDX-License-Identifier: MPL-2.0

// Package launch builds the command line, environment and on-disk settings
// files for one game server launch. Everything here is a pure function of
// configuration and resolved artifact paths, apart from the settings files
// a profile writes in Prepare.
package launch
