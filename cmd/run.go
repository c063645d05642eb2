package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/oddsync/odds-engine/internal/app"
	"github.com/oddsync/odds-engine/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the odds engine",
	Long: `Starts the odds engine, which will:
1. Load active market mappings and subscribe to their tokens via WebSocket
2. Apply spike-filtered price ticks to event probabilities and odds history
3. Drain the Redis backfill queue for full price history
4. Close expired events, reconcile hedges, and settle resolved markets

Use --no-backfill to skip the backfill worker for debugging.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("no-backfill", false, "Skip the backfill worker (for debugging)")
}

func runEngine(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	noBackfill, _ := cmd.Flags().GetBool("no-backfill")

	application, err := app.New(cfg, logger, &app.Options{
		DisableBackfill: noBackfill,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
