// SPDX-License-Identifier: MPL-2.0

// Command azbin is the operator tool for az launcher builds: it computes the
// fingerprint of a runtime archive for the release build and inspects,
// verifies and prunes the runtime cache.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
