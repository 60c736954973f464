package commands

import (
	"github.com/spf13/cobra"

	"github.com/dustingooding/radix-relay/internal/command"
)

// peersCmd lists every known contact from the local identity store.
func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List known peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), command.Command{Kind: command.KindPeers}, false)
		},
	}
}
