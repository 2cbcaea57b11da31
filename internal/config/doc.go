// SPDX-License-Identifier: MPL-2.0

// Package config handles gamekeeper configuration using Viper with CUE as the file format.
//
// Values come from, in increasing precedence: built-in defaults, a config.cue
// file, GAMEKEEPER_* environment variables (plus the bare panel variables
// such as SERVER_PORT and MEM_MAX), and explicit overrides from the command
// line. The file is validated against the embedded config_schema.cue before
// it is merged.
package config
