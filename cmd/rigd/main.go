// Package main is the entry point for the rigd daemon. It is the rig CLI
// pinned to the serve command, kept as a separate binary so deployments
// can ship the daemon alone.
package main

import (
	"fmt"
	"os"

	"github.com/gpurig/rig/internal/cli"
)

func main() {
	if err := cli.ExecuteServe(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
