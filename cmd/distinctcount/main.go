// Package main provides the entry point for the distinctcount CLI tool.
package main

import (
	"os"

	"github.com/Sumatoshi-tech/distinctcount/cmd/distinctcount/commands"
)

func main() {
	err := commands.NewRootCommand().Execute()
	if err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
