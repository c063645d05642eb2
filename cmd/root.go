package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "odds-engine",
	Short: "Prediction market odds engine",
	Long: `Odds engine that streams live prices from the external venue,
filters spikes, keeps per-event probabilities and bucketed odds history
current, and settles events when the venue resolves them.

The engine subscribes to mapped market tokens over WebSocket, backfills
full price history through a crash-safe Redis queue, and publishes odds
updates on Redis pub/sub for downstream consumers.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
