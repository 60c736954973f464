package commands

import (
	"github.com/spf13/cobra"

	"github.com/dustingooding/radix-relay/internal/command"
)

// publishCmd generates and publishes a prekey bundle announcement.
func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish a fresh prekey bundle to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), command.Command{Kind: command.KindPublish}, true)
		},
	}
}

// unpublishCmd publishes an empty bundle announcement, withdrawing this
// identity from new-contact discovery.
func unpublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish",
		Short: "Withdraw this identity's prekey bundle from the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), command.Command{Kind: command.KindUnpublish}, true)
		},
	}
}
