package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coldreach/coldreach-backend/internal/config"
	"github.com/coldreach/coldreach-backend/internal/controller"
	"github.com/coldreach/coldreach-backend/internal/db"
	"github.com/coldreach/coldreach-backend/internal/mailer"
	"github.com/coldreach/coldreach-backend/internal/queue"
	"github.com/coldreach/coldreach-backend/internal/repository"
	"github.com/coldreach/coldreach-backend/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Psql.RunMigrations {
		if err := db.Migrate(cfg.Psql.Addr); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	pool, err := db.New(ctx, cfg.Psql)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	campaignRepo := &repository.CampaignRepository{DB: pool}
	stepRepo := &repository.StepRepository{DB: pool}
	leadRepo := &repository.LeadRepository{DB: pool}
	campaignLeadRepo := &repository.CampaignLeadRepository{DB: pool}
	accountRepo := &repository.EmailAccountRepository{DB: pool}
	usageRepo := &repository.UsageRepository{DB: pool}
	planRepo := &repository.PlanRepository{DB: pool}
	metricsRepo := &repository.MetricsRepository{DB: pool}

	policy := queue.RetryPolicy{MaxRetries: cfg.Worker.MaxRetries, Backoff: cfg.Worker.RetryBackoff}
	var q queue.Queue
	var memQ *queue.MemQueue
	if cfg.Queue.InMemory {
		memQ = queue.NewMemQueue(0, cfg.Worker.Concurrency, policy, logger)
		q = memQ
		logger.Info("using in-memory queue; send worker runs in-process")
	} else {
		amqpQ, err := queue.NewAMQPQueue(cfg.Queue.URL, cfg.Worker.Concurrency, cfg.Queue.Prefetch, policy, logger)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer amqpQ.Close()
		q = amqpQ
	}

	analytics := service.NewAnalyticsService(metricsRepo, logger)
	defer analytics.Close()

	billing := &service.BillingService{
		Plans:    planRepo,
		Usage:    usageRepo,
		Accounts: accountRepo,
		Logger:   logger,
	}
	campaigns := &service.CampaignService{
		Campaigns:     campaignRepo,
		Steps:         stepRepo,
		CampaignLeads: campaignLeadRepo,
		Queue:         q,
		Logger:        logger,
	}
	steps := &service.StepService{
		Campaigns: campaignRepo,
		Steps:     stepRepo,
		Logger:    logger,
	}
	enrollments := &service.EnrollmentService{
		Campaigns:     campaignRepo,
		Leads:         leadRepo,
		CampaignLeads: campaignLeadRepo,
		Analytics:     analytics,
		Logger:        logger,
	}

	// In-memory mode also consumes its own enqueues, so a single binary
	// serves the API and sends email. Production runs cmd/worker against
	// RabbitMQ instead.
	if memQ != nil {
		cipher, err := mailer.NewTokenCipher(cfg.Crypto.Key)
		if err != nil {
			return fmt.Errorf("init token cipher: %w", err)
		}
		worker := &service.SendWorker{
			Quota:         billing,
			Campaigns:     campaignRepo,
			Leads:         leadRepo,
			CampaignLeads: campaignLeadRepo,
			Steps:         stepRepo,
			Accounts:      accountRepo,
			Sender:        mailer.NewGmailSender(nil, cipher, logger),
			Analytics:     analytics,
			Logger:        logger,
			JitterMin:     cfg.Worker.JitterMin,
			JitterMax:     cfg.Worker.JitterMax,
			SendTimeout:   cfg.Worker.SendTimeout,
		}
		memQ.OnDead = worker.MarkFailed
		go memQ.Consume(ctx, worker.Process)

		scheduler := &service.StepScheduler{
			CampaignLeads: campaignLeadRepo,
			Campaigns:     campaignRepo,
			Queue:         memQ,
			Logger:        logger,
			Interval:      cfg.Worker.SchedulerInterval,
			BatchSize:     cfg.Worker.SchedulerBatch,
		}
		go scheduler.Run(ctx)
	}

	router := controller.NewRouter(
		&controller.CampaignController{Campaigns: campaigns},
		&controller.StepController{Steps: steps},
		&controller.EnrollmentController{Enrollments: enrollments},
		&controller.BillingController{Billing: billing},
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler
	if cfg.Log.SlogFormat() == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "coldreach-api")
}
