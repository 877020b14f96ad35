package main

import (
	"os"

	"github.com/calyx-ai/memory-engine/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
