package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
	"github.com/coldreach/coldreach-backend/internal/repository"
)

// StepInput carries the editable fields of a campaign step.
type StepInput struct {
	Type      model.StepType `json:"type"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	DelayDays int            `json:"delay_days"`
}

// StepService manages a campaign's step sequence, keeping step orders a
// contiguous 1..N sequence through adds, deletes and reorders.
type StepService struct {
	Campaigns repository.CampaignRepositoryInterface
	Steps     repository.StepRepositoryInterface
	Logger    *slog.Logger
}

func (s *StepService) ownedCampaign(ctx context.Context, tenantID, campaignID string) error {
	c, err := s.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.TenantID != tenantID {
		return apperrors.NewCampaignNotFound(campaignID)
	}
	return nil
}

func (s *StepService) Add(ctx context.Context, tenantID, campaignID string, in StepInput) (*model.CampaignStep, error) {
	if err := s.ownedCampaign(ctx, tenantID, campaignID); err != nil {
		return nil, err
	}
	if in.DelayDays < 0 {
		return nil, fmt.Errorf("delay days must be non-negative")
	}

	step := &model.CampaignStep{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Type:       in.Type,
		Subject:    in.Subject,
		Body:       in.Body,
		DelayDays:  in.DelayDays,
	}
	if err := s.Steps.Create(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *StepService) List(ctx context.Context, tenantID, campaignID string) ([]*model.CampaignStep, error) {
	if err := s.ownedCampaign(ctx, tenantID, campaignID); err != nil {
		return nil, err
	}
	return s.Steps.ListByCampaign(ctx, campaignID)
}

func (s *StepService) Update(ctx context.Context, tenantID, campaignID, stepID string, in StepInput) (*model.CampaignStep, error) {
	if err := s.ownedCampaign(ctx, tenantID, campaignID); err != nil {
		return nil, err
	}
	if in.DelayDays < 0 {
		return nil, fmt.Errorf("delay days must be non-negative")
	}

	step, err := s.Steps.GetByID(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step.CampaignID != campaignID {
		return nil, apperrors.NewStepNotFound(stepID)
	}

	if in.Type != "" {
		step.Type = in.Type
	}
	step.Subject = in.Subject
	step.Body = in.Body
	step.DelayDays = in.DelayDays
	if err := s.Steps.Update(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *StepService) Delete(ctx context.Context, tenantID, campaignID, stepID string) error {
	if err := s.ownedCampaign(ctx, tenantID, campaignID); err != nil {
		return err
	}
	return s.Steps.DeleteAndCompact(ctx, campaignID, stepID)
}

// Reorder rewrites the campaign's step orders to match stepIDs exactly. A
// list that is not a permutation of the existing steps is rejected without
// touching anything.
func (s *StepService) Reorder(ctx context.Context, tenantID, campaignID string, stepIDs []string) error {
	if err := s.ownedCampaign(ctx, tenantID, campaignID); err != nil {
		return err
	}
	if len(stepIDs) == 0 {
		return apperrors.ErrStepCountMismatch
	}
	return s.Steps.Reorder(ctx, campaignID, stepIDs)
}
