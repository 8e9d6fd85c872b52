package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/analysis"
	httptransport "github.com/deskflow/helpdesk/internal/api/http"
	"github.com/deskflow/helpdesk/internal/api/http/handlers"
	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/config"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/notify"
	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/persistence"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/repository/memory"
	"github.com/deskflow/helpdesk/internal/service"
	"github.com/deskflow/helpdesk/internal/worker"
	"github.com/deskflow/helpdesk/internal/workflow"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.PoolHandle() != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	userRepo, ticketRepo := repositories(pg, logger)
	dispatcher := events.NewInMemoryDispatcher()
	notifier := buildNotifier(cfg.Notification, logger)

	intake := buildIntakeWorkflow(cfg, redis, userRepo, ticketRepo, notifier, logger, metrics)
	intakeWorker := worker.NewIntakeWorker(intake, cfg.Workflow.Workers, cfg.Workflow.ActivationTimeout(), logger)
	intakeWorker.Register(dispatcher)
	service.NewNotificationService(dispatcher, notifier, logger).RegisterHandlers()

	authService := service.NewAuthService(cfg.Auth, userRepo, dispatcher, logger)
	ticketService := service.NewTicketService(ticketRepo, dispatcher, logger)
	adminService := service.NewAdminService(userRepo, ticketRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Admin:          handlers.NewAdminHandler(adminService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownGrace); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer stopCancel()
	if err := intakeWorker.Stop(stopCtx); err != nil {
		logger.Warn("intake worker did not drain", zap.Error(err))
	}
	logger.Info("shutdown complete", zap.Any("metrics", metrics.Snapshot()))
}

func repositories(pg *persistence.Postgres, logger *zap.Logger) (repository.UserRepository, repository.TicketRepository) {
	if pool := pg.PoolHandle(); pool != nil {
		return repository.NewUserRepository(pool), repository.NewTicketRepository(pool)
	}
	logger.Warn("no database configured; using in-memory repositories")
	return memory.NewUserRepository(), memory.NewTicketRepository()
}

func buildNotifier(cfg config.NotificationConfig, logger *zap.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if cfg.SMTPHost != "" {
		notifiers = append(notifiers, notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			TLS:      cfg.SMTPTLS,
		}))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.WebhookURL))
	}
	return notify.NewMultiNotifier(logger, notifiers...)
}

func buildIntakeWorkflow(
	cfg *config.Config,
	redis *persistence.Redis,
	users repository.UserRepository,
	tickets repository.TicketRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *workflow.IntakeWorkflow {
	var (
		stepLog workflow.StepLog
		claims  workflow.ClaimStore
	)
	if redis.Reachable() {
		stepLog = workflow.NewRedisStepLog(redis.Client, cfg.Workflow.StepLogTTL())
		claims = workflow.NewRedisClaimStore(redis.Client, "", cfg.Workflow.ClaimTTL())
	} else {
		logger.Warn("redis unavailable; workflow state kept in memory")
		stepLog = workflow.NewMemoryStepLog(cfg.Workflow.StepLogTTL())
		claims = workflow.NewMemoryClaimStore(cfg.Workflow.ClaimTTL())
	}

	var analyzer analysis.Analyzer = analysis.NopAnalyzer{}
	if cfg.Analysis.Enabled() {
		analyzer = analysis.NewOpenAIAnalyzer(cfg.Analysis.Endpoint, cfg.Analysis.APIKey, cfg.Analysis.Model, cfg.Analysis.Timeout(), logger)
	} else {
		logger.Warn("ANALYSIS_ENDPOINT not set; tickets will not be triaged automatically")
	}

	engine := workflow.NewEngine(stepLog, workflow.EngineOptions{
		Namespace:   "intake",
		MaxRetries:  cfg.Workflow.MaxRetries,
		StepTimeout: cfg.Workflow.StepTimeout(),
		NewBackOff:  workflow.ExponentialBackOff(cfg.Workflow.RetryInitialInterval()),
		Logger:      logger,
		Metrics:     metrics,
	})

	return workflow.NewIntakeWorkflow(workflow.IntakeDependencies{
		Engine:   engine,
		Tickets:  tickets,
		Resolver: workflow.NewAssigneeResolver(users, workflow.SkillMatches),
		Analyzer: analyzer,
		Notifier: notifier,
		Claims:   claims,
		Logger:   logger,
		Metrics:  metrics,
	})
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
