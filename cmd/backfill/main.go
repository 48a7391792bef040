package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/startsmart/internal/backfill"
	"github.com/PaulBabatuyi/startsmart/internal/config"
	"github.com/PaulBabatuyi/startsmart/internal/data"
	"github.com/PaulBabatuyi/startsmart/internal/db"
	"github.com/PaulBabatuyi/startsmart/internal/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "backfill",
		Short:        "One-off data repairs for the negotiation collections",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("dry-run", false, "report what would change without writing")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "messages",
		Short: "Copy embedded funding request threads into the messages collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(ctx context.Context, r *backfill.Runner) (backfill.Report, error) {
				return r.MigrateMessages(ctx)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "repair-status",
		Short: "Mark pending funding requests that already have messages as negotiated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, func(ctx context.Context, r *backfill.Runner) (backfill.Report, error) {
				return r.RepairStatus(ctx)
			})
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withRunner loads config, connects and hands a Runner to fn.
func withRunner(cmd *cobra.Command, fn func(context.Context, *backfill.Runner) (backfill.Report, error)) error {
	cfg, err := config.LoadStore()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: "console", OutputPath: "stderr"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(context.Background()) }()

	r := backfill.NewRunner(
		data.NewFundingRequestsStore(client.FundingRequests()),
		data.NewMessagesStore(client.Messages(), db.UsersCollection),
		db.MessagesCollection,
		log,
	)
	r.DryRun, _ = cmd.Flags().GetBool("dry-run")

	rep, err := fn(ctx, r)
	if err != nil {
		log.Error("backfill failed", zap.Stringer("report", rep), zap.Error(err))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep)
	return nil
}
