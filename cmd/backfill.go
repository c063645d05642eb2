package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/oddsync/odds-engine/internal/backfill"
	"github.com/oddsync/odds-engine/internal/storage"
	"github.com/oddsync/odds-engine/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill queue operations",
}

//nolint:gochecknoglobals // Cobra boilerplate
var backfillEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Enqueue history backfill jobs for active mappings",
	Long: `Enqueues one history backfill job per mapped outcome token. The
running engine's worker picks them up. Use --event to limit the jobs to a
single event.`,
	RunE: runBackfillEnqueue,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.AddCommand(backfillEnqueueCmd)
	backfillEnqueueCmd.Flags().String("event", "", "Limit jobs to one event id")
}

func runBackfillEnqueue(cmd *cobra.Command, args []string) error {
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

	store, err := storage.NewPostgresStore(&storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	active, err := store.ListActiveMappings(ctx)
	if err != nil {
		return fmt.Errorf("list active mappings: %w", err)
	}

	eventID, _ := cmd.Flags().GetString("event")

	entries, err := filterByEvent(active, eventID)
	if err != nil {
		return err
	}

	queue := backfill.NewQueue(rdb, cfg.BackfillMaxAttempts, logger)

	enqueued, err := backfill.EnqueueForMappings(ctx, queue, entries)
	if err != nil {
		return fmt.Errorf("enqueue jobs: %w", err)
	}

	fmt.Printf("Enqueued %d backfill jobs for %d mappings\n", enqueued, len(entries))
	return nil
}

// filterByEvent narrows the active mappings to one event when eventID is
// set. An unknown event id is an error rather than a silent zero-job run.
func filterByEvent(active []storage.ActiveMapping, eventID string) ([]*storage.ActiveMapping, error) {
	entries := make([]*storage.ActiveMapping, 0, len(active))
	for i := range active {
		if eventID != "" && active[i].Event.ID != eventID {
			continue
		}
		entries = append(entries, &active[i])
	}
	if eventID != "" && len(entries) == 0 {
		return nil, fmt.Errorf("no active mapping for event %s", eventID)
	}
	return entries, nil
}
