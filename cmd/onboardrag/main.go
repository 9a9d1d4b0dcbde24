// Package main provides the entry point for the onboardrag CLI.
package main

import (
	"os"

	"github.com/glinthq/onboardrag/cmd/onboardrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
