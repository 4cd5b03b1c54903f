// Package main provides the churnline CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/churnline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
