package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
	"github.com/coldreach/coldreach-backend/internal/queue"
	"github.com/coldreach/coldreach-backend/internal/repository"
)

// QuotaLedger gates resource consumption against plan limits.
// Implemented by BillingService.
type QuotaLedger interface {
	CheckAndIncrement(ctx context.Context, tenantID string, metric model.UsageMetric) (bool, error)
}

// Sender delivers one email through a connected account and returns the
// provider message id. Implemented by mailer.GmailSender.
type Sender interface {
	Send(ctx context.Context, account *model.EmailAccount, to, subject, body string) (string, error)
}

// SendWorker processes dequeued send jobs: it re-validates state, enforces
// quota, renders the step template, delivers through the gateway and commits
// the resulting state transition.
//
// Jobs arrive at least once. A nil return acknowledges the job, including
// every expected no-op of a racy pipeline (lead stopped meanwhile, campaign
// paused, quota exhausted). A non-nil return asks the queue for a retry.
type SendWorker struct {
	Quota         QuotaLedger
	Campaigns     repository.CampaignRepositoryInterface
	Leads         repository.LeadRepositoryInterface
	CampaignLeads repository.CampaignLeadRepositoryInterface
	Steps         repository.StepRepositoryInterface
	Accounts      repository.EmailAccountRepositoryInterface
	Sender        Sender
	Analytics     *AnalyticsService
	Logger        *slog.Logger

	// JitterMin/JitterMax bound the randomized pre-send delay that keeps
	// outbound traffic from forming the bursts spam filters key on. Both
	// zero disables the delay (tests).
	JitterMin time.Duration
	JitterMax time.Duration
	// SendTimeout bounds the delivery call.
	SendTimeout time.Duration
}

// Process handles one job end to end.
//
// The cheap state re-checks run before the quota gate so that a redelivered
// job whose first attempt already committed, or a lead whose sequence was
// stopped between enqueue and execution, does not burn quota. The re-check
// window is still racy at the millisecond scale: a reply landing during the
// jitter delay can lose to a send that is already in flight.
func (w *SendWorker) Process(ctx context.Context, job queue.SendJob) error {
	log := w.Logger.With(
		"campaign_id", job.CampaignID,
		"lead_id", job.LeadID,
		"step_id", job.StepID,
	)

	campaign, err := w.Campaigns.GetByID(ctx, job.CampaignID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// Data integrity fault: retried to absorb replica lag, then
			// dead-lettered by the queue.
			log.Error("job references missing campaign", "error", err)
		}
		return err
	}
	if campaign.Status != model.CampaignRunning {
		log.Info("skipping job: campaign not running", "status", campaign.Status)
		return nil
	}

	// Freshness re-check: a reply processed by the inbox path may have
	// stopped the sequence after this job was enqueued.
	cl, err := w.CampaignLeads.Get(ctx, job.CampaignID, job.LeadID)
	if err != nil {
		return err
	}
	if cl == nil {
		log.Warn("skipping job: lead not enrolled in campaign")
		return nil
	}
	if !cl.Eligible() {
		log.Info("skipping job: enrollment no longer eligible", "status", cl.Status)
		return nil
	}

	step, err := w.Steps.GetByID(ctx, job.StepID)
	if err != nil {
		log.Error("job references missing step", "error", err)
		return err
	}
	if cl.LastSentAt != nil && cl.CurrentStepOrder >= step.StepOrder {
		// Redelivery of a job whose first attempt already committed.
		log.Info("skipping job: step already sent", "step_order", step.StepOrder)
		return nil
	}

	lead, err := w.Leads.GetByID(ctx, job.LeadID)
	if err != nil {
		log.Error("job references missing lead", "error", err)
		return err
	}
	if lead.Suppressed() {
		log.Info("skipping job: lead suppressed", "status", lead.Status)
		return nil
	}

	allowed, err := w.Quota.CheckAndIncrement(ctx, job.TenantID, model.MetricSends)
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}
	if !allowed {
		// Not retryable: the counter only resets at the next period.
		log.Warn("dropping job: send quota exhausted", "tenant_id", job.TenantID)
		return nil
	}

	account, err := w.Accounts.PickActive(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("pick sending account: %w", err)
	}
	if account == nil {
		// Retried a bounded number of times in case a mailbox is
		// reconnected soon; dead-lettered otherwise.
		log.Error("no active email account", "tenant_id", job.TenantID)
		return apperrors.ErrNoActiveAccount
	}

	if err := w.jitter(ctx); err != nil {
		return err
	}

	vars := LeadVariables(lead)
	subject := RenderTemplate(step.Subject, vars)
	body := RenderTemplate(step.Body, vars)

	sendCtx := ctx
	if w.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, w.SendTimeout)
		defer cancel()
	}
	providerID, err := w.Sender.Send(sendCtx, account, lead.Email, subject, body)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthExpired) {
			// Pull the account out of rotation; the retry may succeed
			// against a different one.
			if stErr := w.Accounts.SetStatus(ctx, account.ID, model.AccountError); stErr != nil {
				log.Error("failed to mark account errored", "account_id", account.ID, "error", stErr)
			} else {
				log.Warn("email account disabled after auth failure", "account_id", account.ID)
			}
		}
		return fmt.Errorf("deliver to %s: %w", lead.Email, err)
	}

	committed, err := w.commit(ctx, job, step.StepOrder)
	if err != nil {
		// The email is out; requeueing the job would guarantee a duplicate
		// send, so the discrepancy is surfaced loudly instead of retried.
		log.Error("state commit failed after successful delivery",
			"provider_id", providerID, "error", err)
		return nil
	}
	if !committed {
		log.Warn("enrollment stopped during send window; delivery already made",
			"provider_id", providerID)
		return nil
	}

	w.Analytics.TrackEvent(model.AnalyticsEvent{
		TenantID:       job.TenantID,
		CampaignID:     job.CampaignID,
		EmailAccountID: account.ID,
		Type:           model.EventSent,
	})
	log.Info("email sent", "to", lead.Email, "provider_id", providerID, "account", account.Email)
	return nil
}

// commit applies the post-send state transition, retrying once on error.
func (w *SendWorker) commit(ctx context.Context, job queue.SendJob, stepOrder int) (bool, error) {
	now := time.Now()
	committed, err := w.CampaignLeads.MarkSent(ctx, job.CampaignID, job.LeadID, stepOrder, now)
	if err == nil {
		return committed, nil
	}
	w.Logger.Warn("state commit failed, retrying once",
		"campaign_id", job.CampaignID, "lead_id", job.LeadID, "error", err)
	return w.CampaignLeads.MarkSent(ctx, job.CampaignID, job.LeadID, stepOrder, now)
}

// jitter sleeps a random duration in [JitterMin, JitterMax], honoring
// cancellation.
func (w *SendWorker) jitter(ctx context.Context) error {
	span := w.JitterMax - w.JitterMin
	if span < 0 {
		span = 0
	}
	d := w.JitterMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkFailed parks an enrollment in FAILED after its job exhausted all
// retries. Wired to the queue's dead-letter hook.
func (w *SendWorker) MarkFailed(job queue.SendJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.CampaignLeads.SetStatus(ctx, job.CampaignID, job.LeadID, model.EnrollmentFailed); err != nil {
		w.Logger.Error("failed to mark enrollment failed",
			"campaign_id", job.CampaignID, "lead_id", job.LeadID, "error", err)
		return
	}
	w.Analytics.TrackEvent(model.AnalyticsEvent{
		TenantID:   job.TenantID,
		CampaignID: job.CampaignID,
		Type:       model.EventError,
	})
}
