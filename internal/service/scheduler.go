package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coldreach/coldreach-backend/internal/queue"
	"github.com/coldreach/coldreach-backend/internal/repository"
)

// StepScheduler periodically sweeps the enrollment table for leads whose
// next step delay has elapsed and enqueues their send jobs, then settles
// finished enrollments and campaigns into COMPLETED.
type StepScheduler struct {
	CampaignLeads repository.CampaignLeadRepositoryInterface
	Campaigns     repository.CampaignRepositoryInterface
	Queue         queue.Queue
	Logger        *slog.Logger

	Interval  time.Duration
	BatchSize int
}

// Run sweeps on every tick until the context is cancelled. Errors are
// logged, not fatal; the next tick retries.
func (s *StepScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Logger.Info("step scheduler started", "interval", s.Interval, "batch_size", s.BatchSize)
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("step scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.Logger.Error("scheduler sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs one sweep and returns the number of jobs enqueued.
func (s *StepScheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.CampaignLeads.ListDueForNextStep(ctx, time.Now(), s.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due steps: %w", err)
	}

	enqueued := 0
	for _, d := range due {
		job := queue.SendJob{
			TenantID:   d.TenantID,
			CampaignID: d.CampaignID,
			LeadID:     d.LeadID,
			StepID:     d.StepID,
		}
		if err := s.Queue.Publish(ctx, job); err != nil {
			// The claim stamp goes stale and the row is re-claimed on a
			// later sweep.
			s.Logger.Error("failed to enqueue due step",
				"campaign_id", d.CampaignID, "lead_id", d.LeadID, "error", err)
			continue
		}
		enqueued++
	}

	if n, err := s.CampaignLeads.CompleteFinished(ctx); err != nil {
		s.Logger.Error("failed to complete finished enrollments", "error", err)
	} else if n > 0 {
		s.Logger.Info("enrollments completed", "count", n)
	}
	if n, err := s.Campaigns.CompleteFinished(ctx); err != nil {
		s.Logger.Error("failed to complete finished campaigns", "error", err)
	} else if n > 0 {
		s.Logger.Info("campaigns completed", "count", n)
	}

	if enqueued > 0 {
		s.Logger.Info("due steps enqueued", "count", enqueued)
	}
	return enqueued, nil
}
