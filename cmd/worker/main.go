package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coldreach/coldreach-backend/internal/config"
	"github.com/coldreach/coldreach-backend/internal/db"
	"github.com/coldreach/coldreach-backend/internal/mailer"
	"github.com/coldreach/coldreach-backend/internal/queue"
	"github.com/coldreach/coldreach-backend/internal/repository"
	"github.com/coldreach/coldreach-backend/internal/service"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker exited", "error", err)
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

	pool, err := db.New(ctx, cfg.Psql)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	policy := queue.RetryPolicy{MaxRetries: cfg.Worker.MaxRetries, Backoff: cfg.Worker.RetryBackoff}
	q, err := queue.NewAMQPQueue(cfg.Queue.URL, cfg.Worker.Concurrency, cfg.Queue.Prefetch, policy, logger)
	if err != nil {
		return fmt.Errorf("connect amqp: %w", err)
	}
	defer q.Close()

	cipher, err := mailer.NewTokenCipher(cfg.Crypto.Key)
	if err != nil {
		return fmt.Errorf("init token cipher: %w", err)
	}

	campaignRepo := &repository.CampaignRepository{DB: pool}
	stepRepo := &repository.StepRepository{DB: pool}
	leadRepo := &repository.LeadRepository{DB: pool}
	campaignLeadRepo := &repository.CampaignLeadRepository{DB: pool}
	accountRepo := &repository.EmailAccountRepository{DB: pool}
	usageRepo := &repository.UsageRepository{DB: pool}
	planRepo := &repository.PlanRepository{DB: pool}
	metricsRepo := &repository.MetricsRepository{DB: pool}

	analytics := service.NewAnalyticsService(metricsRepo, logger)
	defer analytics.Close()

	billing := &service.BillingService{
		Plans:    planRepo,
		Usage:    usageRepo,
		Accounts: accountRepo,
		Logger:   logger,
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
	q.OnDead = worker.MarkFailed

	scheduler := &service.StepScheduler{
		CampaignLeads: campaignLeadRepo,
		Campaigns:     campaignRepo,
		Queue:         q,
		Logger:        logger,
		Interval:      cfg.Worker.SchedulerInterval,
		BatchSize:     cfg.Worker.SchedulerBatch,
	}
	go scheduler.Run(ctx)

	logger.Info("send worker started",
		"concurrency", cfg.Worker.Concurrency,
		"max_retries", cfg.Worker.MaxRetries,
	)
	return q.Consume(ctx, worker.Process)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler
	if cfg.Log.SlogFormat() == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "coldreach-worker")
}
