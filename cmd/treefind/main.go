// Package main provides the entry point for the treefind CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/treefind/cmd/treefind/commands"
	"github.com/Sumatoshi-tech/treefind/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
