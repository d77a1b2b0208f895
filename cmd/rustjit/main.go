// Command rustjit builds, caches, and invokes Rust source units as
// native dynamic libraries.
package main

import (
	"fmt"
	"os"

	"github.com/ferricite/rustjit/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
