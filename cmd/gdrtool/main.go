package main

import (
	"os"

	"github.com/kabu1204/gdrcopy/cmd/gdrtool/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
