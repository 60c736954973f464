package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustingooding/radix-relay/internal/command"
)

// oneShotTimeout bounds how long a one-shot subcommand waits for a
// display message before giving up, separate from the orchestrator's
// own 15s OK/EOSE correlation timeout (spec.md §5) since a one-shot
// invocation also pays for the websocket connect.
const oneShotTimeout = 20 * time.Second

// runOneShot starts the node's processors, connects to the relay,
// issues a single parsed command, prints the first display message it
// produces (or a timeout notice), and shuts the node down cleanly. It
// exists because the cobra subcommands below are one-shot invocations
// (spec.md §6 "Local inputs") rather than the long-lived REPL `run`
// drives.
func runOneShot(parent context.Context, cmd command.Command, needsConnection bool) error {
	ctx, cancel := context.WithTimeout(parent, oneShotTimeout)
	defer cancel()

	node.Run(ctx)
	defer node.Shutdown()

	if needsConnection {
		node.Connect()
	}

	node.Handler.Handle(cmd)

	msg, err := node.Display.Pop(ctx)
	if err != nil {
		return fmt.Errorf("timed out waiting for a response")
	}
	fmt.Println(msg.Text)
	return nil
}
