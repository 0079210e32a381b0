package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/srmops/approval-flow/internal/application/dispatcher"
	"github.com/srmops/approval-flow/internal/application/engine"
	"github.com/srmops/approval-flow/internal/application/idgen"
	"github.com/srmops/approval-flow/internal/application/service"
	"github.com/srmops/approval-flow/internal/config"
	"github.com/srmops/approval-flow/internal/domain/workflow"
	"github.com/srmops/approval-flow/internal/email"
	"github.com/srmops/approval-flow/internal/infrastructure/persistence/repository"
	"github.com/srmops/approval-flow/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/srmops/approval-flow/internal/interfaces/http"
	"github.com/srmops/approval-flow/pkg/database"
	"github.com/srmops/approval-flow/pkg/utils"
)

func main() {
	// Local development secrets; absent in deployed environments
	_ = gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting approval flow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Database and migrations
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

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Persistence
	txManager := sqlite.NewDB(db, logger)
	requestRepo := repository.NewRequestRepository(db, logger)
	historyRepo := repository.NewHistoryRepository(db, logger)
	notificationRepo := repository.NewNotificationRepository(db, logger)
	actorDirectory := repository.NewActorRepository(db, logger)

	// Workflow wiring
	definition := workflow.NewDefinition(
		workflow.WithQueryPolicy(workflow.QueryPolicy{
			AllowRejectDuringQuery: cfg.Workflow.AllowRejectDuringQuery,
			AllowConcurrentQueries: cfg.Workflow.AllowConcurrentQueries,
		}),
	)

	sugar := logger.Sugar()
	eventDispatcher := dispatcher.NewDispatcher(dispatcher.WithLogger(sugaredLogger{sugar}))
	defer eventDispatcher.Close()

	allocator := idgen.NewAllocator(requestRepo,
		idgen.WithMaxAttempts(cfg.Workflow.IDAllocationMaxAttempts))

	transitionEngine := engine.NewEngine(
		definition,
		requestRepo,
		historyRepo,
		actorDirectory,
		txManager,
		allocator,
		engine.WithDispatcher(eventDispatcher),
		engine.WithLogger(sugaredLogger{sugar}),
		engine.WithConflictRetries(cfg.Workflow.ConflictRetries),
	)

	// Notifications: in-app rows plus optional SMTP delivery
	emailSender := email.NewSender(email.Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.From,
	}, logger)

	notificationService := service.NewNotificationService(
		definition,
		requestRepo,
		notificationRepo,
		actorDirectory,
		emailSender,
		sugaredLogger{sugar},
	)
	notificationService.Register(eventDispatcher)

	searchService := service.NewSearchService(definition, requestRepo, sugaredLogger{sugar})

	// HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		transitionEngine,
		searchService,
		notificationService,
		sugaredLogger{sugar},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// configPath allows overriding the config file location for deployments
func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "configs/config.yaml"
}

// sugaredLogger adapts zap's sugared logger to the keysAndValues interfaces
// the application layer depends on
type sugaredLogger struct {
	sugar *zap.SugaredLogger
}

func (l sugaredLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l sugaredLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}
