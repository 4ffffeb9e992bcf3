package main

import (
	"os"

	"github.com/lexiscope/lexiscope/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
