package commands

import (
	"github.com/spf13/cobra"

	"github.com/dustingooding/radix-relay/internal/command"
)

// statusCmd reports connection_monitor's last-known state per transport.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show transport connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), command.Command{Kind: command.KindStatus}, true)
		},
	}
}
