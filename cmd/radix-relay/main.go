// The entrypoint for the radix-relay CLI.
package main

import (
	"log"

	"github.com/dustingooding/radix-relay/cmd/radix-relay/commands"
)

// Initialises and executes the command hierarchy.
func main() {
	if err := commands.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
