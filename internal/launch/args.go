// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"fmt"

	"mvdan.cc/sh/v3/shell"
)

// SplitArgs splits a user-supplied argument string with POSIX shell quoting
// rules. Parameter references expand from env, not from the manager's own
// environment.
func SplitArgs(s string, env []string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	fields, err := shell.Fields(s, func(name string) string {
		v, _ := lookupEnv(env, name)
		return v
	})
	if err != nil {
		return nil, fmt.Errorf("parsing arguments %q: %w", s, err)
	}
	return fields, nil
}
