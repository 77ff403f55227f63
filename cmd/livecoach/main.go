// Package main is the entry point for the livecoach CLI.
//
// Usage:
//
//	livecoach [flags] <command> [args]
//
// Commands:
//
//	run       - Run a live coaching session
//	sessions  - Inspect and export past sessions
//	config    - Show or initialize the configuration
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/pulsefit/livecoach/cmd/livecoach/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
