package commands

import (
	"github.com/spf13/cobra"

	"github.com/dustingooding/radix-relay/internal/command"
)

// trustCmd assigns a local alias to a peer's RDX fingerprint.
func trustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <peer> [alias]",
		Short: "Assign a local alias to a peer",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias := ""
			if len(args) > 1 {
				alias = args[1]
			}
			return runOneShot(cmd.Context(), command.Command{
				Kind:  command.KindTrust,
				Peer:  args[0],
				Alias: alias,
			}, false)
		},
	}
}
