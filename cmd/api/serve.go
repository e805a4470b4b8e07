package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taskflow/taskflow-api/internal/api"
	"github.com/taskflow/taskflow-api/internal/api/handler"
	"github.com/taskflow/taskflow-api/internal/core/ports"
	"github.com/taskflow/taskflow-api/internal/core/service"
	"github.com/taskflow/taskflow-api/internal/infrastructure/billing"
	"github.com/taskflow/taskflow-api/internal/infrastructure/db/mongo"
	"github.com/taskflow/taskflow-api/internal/infrastructure/db/postgres"
	"github.com/taskflow/taskflow-api/internal/infrastructure/db/redis"
	"github.com/taskflow/taskflow-api/internal/infrastructure/messaging"
	"github.com/taskflow/taskflow-api/internal/infrastructure/queue"
	"github.com/taskflow/taskflow-api/internal/pkg/config"
	"github.com/taskflow/taskflow-api/pkg/logger"
)

const (
	shutdownTimeout = 15 * time.Second
	amqpRetries     = 5
	amqpRetryDelay  = 2 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the billing retry workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	log := logger.Get()

	// --- Storage ---
	db, err := postgres.Connect(ctx, postgresConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Postgres.AutoMigrate {
		if err := postgres.MigrateUp(db); err != nil {
			return err
		}
		log.Info().Msg("database migrations applied")
	}

	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	mongoClient, mongoDB, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  serviceName,
	})
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	eventStore := mongo.NewBillingEventStore(mongoDB)
	if err := eventStore.EnsureIndexes(ctx); err != nil {
		return err
	}

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	// --- Core ---
	users := postgres.NewUserRepository(db)
	subs := postgres.NewSubscriptionRepository(db)
	projects := postgres.NewProjectRepository(db)
	tasks := postgres.NewTaskRepository(db)
	access := service.NewAccessChecker(projects)

	billingSvc := service.NewBillingService(service.BillingDeps{
		Subscriptions: subs,
		Users:         users,
		Provider: billing.NewStripeProvider(billing.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Timeout:       cfg.Stripe.Timeout,
		}),
		Catalog:   service.NewPlanCatalog(cfg.Plans()),
		Dedup:     redis.NewEventDedup(rdb, cfg.Redis.DedupTTL),
		Events:    eventStore,
		Publisher: publisher,
	}, service.BillingConfig{
		FrontendURL: cfg.FrontendURL,
		Timeout:     cfg.Stripe.Timeout,
	}, log)

	authSvc := service.NewAuthService(users, billingSvc, cfg.JWTSecret, cfg.JWTExpires, log)

	// --- Billing retries ---
	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	dispatcher := queue.NewDispatcher(cfg.Retry.Workers, billingSvc, eventStore, log)
	dispatcher.Start(workersCtx)

	sweeper := queue.NewSweeper(queue.SweeperConfig{
		Schedule:    cfg.Retry.Schedule,
		MaxAttempts: cfg.Retry.MaxAttempts,
		BatchSize:   cfg.Retry.BatchSize,
	}, eventStore, dispatcher, log)
	if err := sweeper.Start(workersCtx); err != nil {
		return err
	}
	defer sweeper.Stop(shutdownTimeout)

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Log:           log,
		Production:    cfg.IsProduction(),
		FrontendURL:   cfg.FrontendURL,
		RateLimit:     cfg.RateLimit,
		Auth:          authSvc,
		Users:         service.NewUserService(users, subs, log),
		Projects:      service.NewProjectService(projects, access, log),
		Tasks:         service.NewTaskService(tasks, access, log),
		Billing:       billingSvc,
		Subscriptions: subs,
		HealthChecks: map[string]handler.HealthCheck{
			"postgres": db.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"mongodb":  func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		},
	})
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("HTTP server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down HTTP server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
		return err
	}
	return nil
}

// newPublisher connects to AMQP when configured. Without AMQP_URL, or when the
// broker stays unreachable, subscription changes are not announced.
func newPublisher(cfg *config.Config, log zerolog.Logger) (ports.EventPublisher, func()) {
	if cfg.AMQP.URL == "" {
		log.Info().Msg("AMQP_URL not set; subscription events will not be published")
		return messaging.NoopPublisher{}, func() {}
	}

	conn, err := messaging.Connect(cfg.AMQP.URL, amqpRetries, amqpRetryDelay)
	if err != nil {
		log.Warn().Err(err).Msg("AMQP unavailable; subscription events will not be published")
		return messaging.NoopPublisher{}, func() {}
	}
	pub, err := messaging.NewPublisher(conn, cfg.AMQP.Exchange)
	if err != nil {
		_ = conn.Close()
		log.Warn().Err(err).Msg("AMQP exchange setup failed; subscription events will not be published")
		return messaging.NoopPublisher{}, func() {}
	}
	return pub, func() {
		_ = pub.Close()
		_ = conn.Close()
	}
}
