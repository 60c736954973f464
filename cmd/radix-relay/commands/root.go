package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dustingooding/radix-relay/internal/app"
	"github.com/dustingooding/radix-relay/internal/config"
)

var (
	// These flags are shared across all commands.
	dbPath   string
	relayURL string
	verbose  bool

	// node holds the wired dependencies after PersistentPreRunE.
	node *app.Node
)

// Execute initialises the application node and runs the root cobra command.
func Execute() error {
	root := &cobra.Command{
		Use:   "radix-relay",
		Short: "Peer-to-peer end-to-end encrypted messaging over a relay",
		// Before any sub-command runs we need to build out the Node
		// (store, signal bridge, transport, orchestrator).
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			if verbose {
				cfg.Verbose = true
			}

			node, err = app.New(cfg)
			if err != nil {
				return fmt.Errorf("initialising node: %w", err)
			}
			return nil
		},
	}

	// Global flags.
	root.PersistentFlags().StringVar(
		&dbPath,
		"db",
		"",
		"identity database path (default: $HOME/.local/share/radix-relay/identity.db)",
	)
	root.PersistentFlags().StringVar(
		&relayURL,
		"relay",
		"",
		"relay URL, e.g. wss://relay.radix.example/ws",
	)
	root.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"raise the log level to debug",
	)

	// Register sub-commands.
	root.AddCommand(
		runCmd(),
		sendCmd(),
		peersCmd(),
		statusCmd(),
		publishCmd(),
		unpublishCmd(),
		trustCmd(),
	)

	// Create a signal-aware context so Ctrl-C drives a clean shutdown
	// rather than an abrupt process kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	root.SetContext(ctx)

	return root.Execute()
}
