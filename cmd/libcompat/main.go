// Package main provides the entry point for the libcompat CLI.
package main

import (
	"os"

	"github.com/triageworks/libcompat/cmd/libcompat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
