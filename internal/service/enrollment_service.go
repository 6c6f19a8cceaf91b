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

// EnrollmentResult summarises a bulk add: how many leads were enrolled and
// how many were suppressed by the eligibility rules.
type EnrollmentResult struct {
	Added      int      `json:"added"`
	Suppressed int      `json:"suppressed"`
	Errors     []string `json:"errors,omitempty"`
}

// EnrollmentService manages the campaign-lead join records: bulk enrollment
// with suppression rules, manual stops, and the inbound hooks that stop a
// sequence when the lead replies, bounces or unsubscribes.
type EnrollmentService struct {
	Campaigns     repository.CampaignRepositoryInterface
	Leads         repository.LeadRepositoryInterface
	CampaignLeads repository.CampaignLeadRepositoryInterface
	Analytics     *AnalyticsService
	Logger        *slog.Logger
}

func (s *EnrollmentService) ownedCampaign(ctx context.Context, tenantID, campaignID string) (*model.Campaign, error) {
	c, err := s.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.TenantID != tenantID {
		return nil, apperrors.NewCampaignNotFound(campaignID)
	}
	return c, nil
}

// CreateLead registers a new contact for the tenant.
func (s *EnrollmentService) CreateLead(ctx context.Context, tenantID, email, firstName, lastName, company string) (*model.Lead, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	lead := &model.Lead{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Company:   company,
		Status:    model.LeadNew,
	}
	if err := s.Leads.Create(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// AddLeads enrolls leads into the campaign as PENDING. A lead is suppressed
// rather than enrolled when it is globally BOUNCED/UNSUBSCRIBED, already in
// this campaign, or currently ACTIVE in another campaign (a lead runs
// through at most one sequence at a time).
func (s *EnrollmentService) AddLeads(ctx context.Context, tenantID, campaignID string, leadIDs []string) (*EnrollmentResult, error) {
	if _, err := s.ownedCampaign(ctx, tenantID, campaignID); err != nil {
		return nil, err
	}

	leads, err := s.Leads.GetByIDs(ctx, tenantID, leadIDs)
	if err != nil {
		return nil, err
	}

	result := &EnrollmentResult{}
	if len(leads) == 0 {
		result.Errors = append(result.Errors, "no valid leads found")
		return result, nil
	}

	for _, lead := range leads {
		if lead.Suppressed() {
			result.Suppressed++
			continue
		}

		existing, err := s.CampaignLeads.Get(ctx, campaignID, lead.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			result.Suppressed++
			continue
		}

		activeElsewhere, err := s.CampaignLeads.ActiveElsewhere(ctx, lead.ID, campaignID)
		if err != nil {
			return nil, err
		}
		if activeElsewhere {
			result.Suppressed++
			continue
		}

		cl := &model.CampaignLead{
			CampaignID: campaignID,
			LeadID:     lead.ID,
			Status:     model.EnrollmentPending,
		}
		if err := s.CampaignLeads.Enroll(ctx, cl); err != nil {
			s.Logger.Error("failed to enroll lead",
				"campaign_id", campaignID, "lead_id", lead.ID, "error", err)
			result.Errors = append(result.Errors, lead.ID+": "+err.Error())
			continue
		}
		result.Added++
	}
	return result, nil
}

func (s *EnrollmentService) List(ctx context.Context, tenantID, campaignID string, page, pageSize int) ([]*model.CampaignLead, int, error) {
	if _, err := s.ownedCampaign(ctx, tenantID, campaignID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	return s.CampaignLeads.ListByCampaign(ctx, campaignID, (page-1)*pageSize, pageSize)
}

// Remove stops the enrollment. The row is kept for history, never deleted.
func (s *EnrollmentService) Remove(ctx context.Context, tenantID, campaignID, leadID string) error {
	if _, err := s.ownedCampaign(ctx, tenantID, campaignID); err != nil {
		return err
	}
	return s.CampaignLeads.SetStatus(ctx, campaignID, leadID, model.EnrollmentStopped)
}

// HandleReply is the stop-on-reply hook driven by the inbox ingestion path:
// the lead goes REPLIED, its sequence stops, and a REPLY event is tracked.
func (s *EnrollmentService) HandleReply(ctx context.Context, tenantID, campaignID, leadID, emailAccountID string) error {
	if err := s.CampaignLeads.Stop(ctx, campaignID, leadID, model.LeadReplied); err != nil {
		return err
	}
	s.Analytics.TrackEvent(model.AnalyticsEvent{
		TenantID:       tenantID,
		CampaignID:     campaignID,
		EmailAccountID: emailAccountID,
		Type:           model.EventReply,
	})
	s.Logger.Info("sequence stopped on reply", "campaign_id", campaignID, "lead_id", leadID)
	return nil
}

// HandleBounce suppresses the lead globally and stops the sequence.
func (s *EnrollmentService) HandleBounce(ctx context.Context, tenantID, campaignID, leadID, emailAccountID string) error {
	if err := s.CampaignLeads.Stop(ctx, campaignID, leadID, model.LeadBounced); err != nil {
		return err
	}
	s.Analytics.TrackEvent(model.AnalyticsEvent{
		TenantID:       tenantID,
		CampaignID:     campaignID,
		EmailAccountID: emailAccountID,
		Type:           model.EventBounce,
	})
	s.Logger.Info("sequence stopped on bounce", "campaign_id", campaignID, "lead_id", leadID)
	return nil
}

// HandleUnsubscribe suppresses the lead globally and stops the sequence.
func (s *EnrollmentService) HandleUnsubscribe(ctx context.Context, tenantID, campaignID, leadID string) error {
	if err := s.CampaignLeads.Stop(ctx, campaignID, leadID, model.LeadUnsubscribed); err != nil {
		return err
	}
	s.Logger.Info("sequence stopped on unsubscribe", "campaign_id", campaignID, "lead_id", leadID)
	return nil
}
