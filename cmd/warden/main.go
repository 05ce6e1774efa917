// Package main is the entry point for the warden supervisor CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/phrazzld/warden/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, cli.ErrRolesStuck) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
