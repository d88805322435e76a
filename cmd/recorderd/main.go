// Package main is the entry point for the recorderd application.
package main

import (
	"os"

	"github.com/jmylchreest/tvarr-recorder/cmd/recorderd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
