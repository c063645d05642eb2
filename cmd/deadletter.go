package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/oddsync/odds-engine/internal/backfill"
	"github.com/oddsync/odds-engine/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var deadletterCmd = &cobra.Command{
	Use:   "deadletter",
	Short: "Dead-letter queue operations",
}

//nolint:gochecknoglobals // Cobra boilerplate
var deadletterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered backfill jobs",
	RunE:  runDeadletterList,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(deadletterCmd)
	deadletterCmd.AddCommand(deadletterListCmd)
	deadletterListCmd.Flags().Int64("limit", 50, "Maximum number of jobs to list")
}

func runDeadletterList(cmd *cobra.Command, args []string) error {
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	limit, _ := cmd.Flags().GetInt64("limit")

	queue := backfill.NewQueue(rdb, cfg.BackfillMaxAttempts, logger)

	jobs, err := queue.DeadLetters(ctx, limit)
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("Dead-letter queue is empty")
		return nil
	}

	for _, j := range jobs {
		fmt.Printf("%s  event=%s outcome=%s token=%s failed=%s reason=%q\n",
			j.ID, j.EventID, j.OutcomeID, j.TokenID,
			j.FailedAt.Format(time.RFC3339), j.Reason)
	}
	fmt.Printf("%d dead-lettered jobs\n", len(jobs))
	return nil
}
