package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
	"github.com/coldreach/coldreach-backend/internal/queue"
	"github.com/coldreach/coldreach-backend/internal/repository"
)

// CampaignService owns the campaign lifecycle and the transition into the
// send pipeline: starting a campaign turns its PENDING enrollments into
// step-1 jobs on the dispatch queue.
type CampaignService struct {
	Campaigns     repository.CampaignRepositoryInterface
	Steps         repository.StepRepositoryInterface
	CampaignLeads repository.CampaignLeadRepositoryInterface
	Queue         queue.Queue
	Logger        *slog.Logger
}

func (s *CampaignService) Create(ctx context.Context, tenantID, name string, dailyLimit int) (*model.Campaign, error) {
	c := &model.Campaign{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Name:       name,
		Status:     model.CampaignDraft,
		DailyLimit: dailyLimit,
	}
	if err := s.Campaigns.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the campaign when it belongs to the tenant.
func (s *CampaignService) Get(ctx context.Context, tenantID, campaignID string) (*model.Campaign, error) {
	c, err := s.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.TenantID != tenantID {
		return nil, apperrors.NewCampaignNotFound(campaignID)
	}
	return c, nil
}

func (s *CampaignService) List(ctx context.Context, tenantID string, page, pageSize int, status string) ([]*model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	campaigns, total, err := s.Campaigns.ListByTenant(ctx, tenantID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// Start moves a DRAFT or PAUSED campaign to RUNNING and enqueues one step-1
// job for every PENDING enrollment. Returns the number of jobs enqueued.
// Already-enqueued jobs from a previous run are not retracted; the worker's
// freshness checks make the overlap harmless.
func (s *CampaignService) Start(ctx context.Context, tenantID, campaignID string) (int, error) {
	c, err := s.Get(ctx, tenantID, campaignID)
	if err != nil {
		return 0, err
	}
	if c.Status != model.CampaignDraft && c.Status != model.CampaignPaused {
		return 0, &apperrors.ErrInvalidTransition{From: string(c.Status), To: string(model.CampaignRunning)}
	}

	steps, err := s.Steps.ListByCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if len(steps) == 0 {
		return 0, apperrors.ErrNoSteps
	}
	first := steps[0]

	pending, err := s.CampaignLeads.ListPending(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	jobs := make([]queue.SendJob, 0, len(pending))
	for _, cl := range pending {
		jobs = append(jobs, queue.SendJob{
			TenantID:   tenantID,
			CampaignID: campaignID,
			LeadID:     cl.LeadID,
			StepID:     first.ID,
		})
	}

	// RUNNING before the enqueue: workers skip jobs for campaigns that are
	// not running, so the reverse order would race the first deliveries.
	if err := s.Campaigns.UpdateStatus(ctx, campaignID, model.CampaignRunning); err != nil {
		return 0, err
	}
	if err := s.Queue.PublishBatch(ctx, jobs); err != nil {
		// The campaign cannot make progress without its jobs; park it in
		// ERROR for the operator rather than pretending it is running.
		if stErr := s.Campaigns.UpdateStatus(ctx, campaignID, model.CampaignError); stErr != nil {
			s.Logger.Error("failed to mark campaign errored", "campaign_id", campaignID, "error", stErr)
		}
		return 0, fmt.Errorf("enqueue send jobs: %w", err)
	}

	s.Logger.Info("campaign started",
		"campaign_id", campaignID, "tenant_id", tenantID, "enqueued", len(jobs))
	return len(jobs), nil
}

// Pause moves a RUNNING campaign to PAUSED. Jobs already on the queue are
// not retracted; the worker no-ops them while the campaign is paused.
func (s *CampaignService) Pause(ctx context.Context, tenantID, campaignID string) error {
	c, err := s.Get(ctx, tenantID, campaignID)
	if err != nil {
		return err
	}
	if c.Status != model.CampaignRunning {
		return &apperrors.ErrInvalidTransition{From: string(c.Status), To: string(model.CampaignPaused)}
	}
	return s.Campaigns.UpdateStatus(ctx, campaignID, model.CampaignPaused)
}
