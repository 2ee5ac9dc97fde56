// Command scanorder is the command line front end of the invoice review workflow.
package main

import (
	"os"

	"scanorder/cmd/scanorder/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
