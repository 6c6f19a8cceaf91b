package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/coldreach/coldreach-backend/internal/model"
	"github.com/coldreach/coldreach-backend/internal/repository"
)

// BillingService is the quota ledger: per-tenant usage accounting against
// plan limits. Cumulative metrics (SENDS, AI_REQUESTS) ride an atomic
// upsert-increment in the usage repository; the state-based INBOXES metric
// compares a live count of connected accounts and increments nothing.
type BillingService struct {
	Plans    repository.PlanRepositoryInterface
	Usage    repository.UsageRepositoryInterface
	Accounts repository.EmailAccountRepositoryInterface
	Logger   *slog.Logger
}

// CheckAndIncrement reports whether the tenant may consume one more unit of
// metric, consuming it when allowed. Hitting the limit returns false, nil:
// a billing outcome rather than an error, so the caller decides what to abort.
func (s *BillingService) CheckAndIncrement(ctx context.Context, tenantID string, metric model.UsageMetric) (bool, error) {
	plan, err := s.Plans.GetForTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}

	if metric == model.MetricInboxes {
		current, err := s.Accounts.CountByTenant(ctx, tenantID)
		if err != nil {
			return false, err
		}
		return current < plan.InboxLimit, nil
	}

	limit := plan.MonthlySends
	if metric == model.MetricAIRequests {
		limit = plan.AILimit
	}

	period := model.CurrentPeriod(time.Now())
	allowed, err := s.Usage.IncrementIfBelow(ctx, tenantID, metric, period, limit)
	if err != nil {
		return false, err
	}
	if !allowed {
		s.Logger.Warn("plan limit reached",
			"tenant_id", tenantID, "metric", metric, "period", period, "limit", limit)
	}
	return allowed, nil
}

// Usage summary returned by PlanAndUsage for the billing endpoint.
type PlanUsage struct {
	Plan  model.Plan     `json:"plan"`
	Usage map[string]int `json:"usage"`
}

// PlanAndUsage resolves the tenant's plan and current-period consumption.
func (s *BillingService) PlanAndUsage(ctx context.Context, tenantID string) (*PlanUsage, error) {
	plan, err := s.Plans.GetForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	period := model.CurrentPeriod(time.Now())
	sends, err := s.Usage.Get(ctx, tenantID, model.MetricSends, period)
	if err != nil {
		return nil, err
	}
	ai, err := s.Usage.Get(ctx, tenantID, model.MetricAIRequests, period)
	if err != nil {
		return nil, err
	}
	inboxes, err := s.Accounts.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &PlanUsage{
		Plan: *plan,
		Usage: map[string]int{
			"sends":       sends,
			"ai_requests": ai,
			"inboxes":     inboxes,
		},
	}, nil
}
