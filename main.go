// ABOUTME: Entry point for the stakemap CLI and MCP server
// ABOUTME: Hands the command line to the cobra tree in package cli
package main

import (
	"os"

	"github.com/harperreed/stakemap/cli"
)

const version = "0.2.0"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
