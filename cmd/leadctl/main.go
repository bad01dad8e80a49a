package main

import (
	"os"

	"github.com/caseflow-systems/leadrelay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
