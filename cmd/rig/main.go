// Package main is the entry point for the rig CLI.
package main

import (
	"github.com/gpurig/rig/internal/cli"
)

func main() {
	cli.Execute()
}
