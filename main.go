// ChestBuddy - operation-scoped UI blocking coordinator.
//
// The library packages under internal/blocking implement the coordinator;
// the CLI exercises it against a synthetic resource tree.
package main

import (
	"fmt"
	"os"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/cli"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/version"
)

func main() {
	// Propagate version from the single source of truth (internal/version)
	// to the CLI package
	cli.Version = version.Version
	cli.BuildTime = version.BuildTime

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
