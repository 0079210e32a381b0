// Command backfill-ids assigns 6-digit public ids to legacy requests created
// before id allocation existed. Safe to re-run: rows that already carry an id
// are never touched.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/srmops/approval-flow/internal/application/idgen"
	"github.com/srmops/approval-flow/internal/application/port"
	"github.com/srmops/approval-flow/internal/config"
	"github.com/srmops/approval-flow/internal/domain/workflow"
	"github.com/srmops/approval-flow/internal/infrastructure/persistence/repository"
	"github.com/srmops/approval-flow/pkg/database"
	"github.com/srmops/approval-flow/pkg/utils"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "list rows that would be backfilled without writing")
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stdout",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	requestRepo := repository.NewRequestRepository(db, logger)
	allocator := idgen.NewAllocator(requestRepo,
		idgen.WithMaxAttempts(cfg.Workflow.IDAllocationMaxAttempts))

	ctx := context.Background()

	missing, err := requestRepo.ListMissingRequestID(ctx)
	if err != nil {
		logger.Fatal("Failed to list requests missing ids", zap.Error(err))
	}

	if len(missing) == 0 {
		logger.Info("No requests need backfilling")
		return
	}

	logger.Info("Found requests without public ids", zap.Int("count", len(missing)))

	var assigned, failed int
	for _, request := range missing {
		if *dryRun {
			logger.Info("Would backfill",
				zap.String("id", request.ID),
				zap.String("title", request.Title))
			continue
		}

		if err := backfillOne(ctx, requestRepo, allocator, request.ID); err != nil {
			logger.Error("Failed to backfill request",
				zap.String("id", request.ID),
				zap.Error(err))
			failed++
			continue
		}
		assigned++
	}

	logger.Info("Backfill complete",
		zap.Int("assigned", assigned),
		zap.Int("failed", failed))

	if failed > 0 {
		os.Exit(1)
	}
}

// backfillOne draws ids until one survives the unique index
func backfillOne(ctx context.Context, repo port.RequestRepository, allocator *idgen.Allocator, id string) error {
	for attempt := 0; attempt < idgen.DefaultMaxAttempts; attempt++ {
		requestID, err := allocator.Allocate(ctx)
		if err != nil {
			return err
		}

		err = repo.AssignRequestID(ctx, id, requestID)
		if errors.Is(err, workflow.ErrDuplicateRequestID) {
			continue
		}
		return err
	}
	return workflow.ErrIdExhaustion
}
