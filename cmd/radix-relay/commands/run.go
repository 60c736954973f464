package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runCmd starts the node's processors, connects to the configured
// relay, and drives a stdin/stdout REPL: lines typed by the user are
// fed to command_parser, and display messages produced by the
// presentation pipeline are printed as they arrive (spec.md §1's
// explicit non-goal "the concrete UI ... the core exposes event
// streams and accepts raw command strings" — this loop is exactly that
// external collaborator, kept as thin as the spec allows).
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the node and read commands from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			node.Run(ctx)
			node.Connect()

			go printDisplay(ctx)

			fmt.Println("radix-relay started. Type /help for commands, /disconnect to exit.")
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				parsed := node.Parser.Parse(line)
				node.Handler.Handle(parsed)
			}

			node.Shutdown()
			return scanner.Err()
		},
	}
}

func printDisplay(ctx context.Context) {
	for {
		msg, err := node.Display.Pop(ctx)
		if err != nil {
			return
		}
		fmt.Println(msg.Text)
	}
}
