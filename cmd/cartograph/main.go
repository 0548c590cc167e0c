// Package main provides the entry point for the cartograph CLI.
package main

import (
	"os"

	"github.com/cartograph-dev/cartograph/cmd/cartograph/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
