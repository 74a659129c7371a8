// Package main provides the entry point for the libindex CLI.
package main

import (
	"os"

	"github.com/designtools/libindex/cmd/libindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
