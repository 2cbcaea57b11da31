// SPDX-License-Identifier: MPL-2.0

// Command gamekeeper installs, launches and supervises a game server.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(execute(context.Background(), NewApp(Dependencies{})))
}
