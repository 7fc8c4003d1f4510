package sweep

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"subsync/internal/application/billing/usecases"
	"subsync/internal/infrastructure/config"
	"subsync/internal/infrastructure/database"
	"subsync/internal/infrastructure/repository"
	"subsync/internal/shared/keylock"
	"subsync/internal/shared/logger"
)

var (
	env        string
	configPath string
	dryRun     bool
	pageSize   int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a one-off expiry sweep",
		Long:  `Scan for subscriptions whose paid period has lapsed and mark them expired. Use --dry-run to report without writing.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be expired without writing")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Override the sweep page size")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(env, configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	subscriptionRepo := repository.NewSubscriptionRepository(database.Get(), log)
	sweepUC := usecases.NewSweepExpiredUseCase(subscriptionRepo, keylock.New(), cfg.Sweep.PageSize, log)

	result, err := sweepUC.Execute(context.Background(), usecases.SweepCommand{
		DryRun:   dryRun,
		PageSize: pageSize,
	})
	if err != nil {
		log.Errorw("sweep failed", "error", err)
		return fmt.Errorf("sweep failed: %w", err)
	}

	if dryRun {
		fmt.Printf("\nExpiry Sweep (dry run):\n")
		fmt.Printf("  Scanned:      %d\n", result.Scanned)
		fmt.Printf("  Would expire: %d\n", result.WouldExpire)
	} else {
		fmt.Printf("\nExpiry Sweep:\n")
		fmt.Printf("  Scanned: %d\n", result.Scanned)
		fmt.Printf("  Expired: %d\n", result.Expired)
		fmt.Printf("  Skipped: %d\n", result.Skipped)
		fmt.Printf("  Failed:  %d\n", result.Failed)
	}

	return nil
}
