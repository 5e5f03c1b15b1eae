package main

import (
	"os"

	"github.com/solatis/opbuilder/cmd/opbuilder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
