package main

import (
	"os"

	"github.com/telhawk-systems/honeynet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
