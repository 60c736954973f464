package commands

import (
	"github.com/spf13/cobra"

	"github.com/dustingooding/radix-relay/internal/command"
)

// sendCmd encrypts and sends a message to <peer> over the configured relay.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), command.Command{
				Kind:    command.KindSend,
				Peer:    args[0],
				Message: args[1],
			}, true)
		},
	}
}
