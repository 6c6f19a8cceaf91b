package service_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
	"github.com/coldreach/coldreach-backend/internal/model"
	"github.com/coldreach/coldreach-backend/internal/queue"
	"github.com/coldreach/coldreach-backend/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- in-memory repositories ---

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]*model.Campaign
}

func newFakeCampaignRepo(cs ...*model.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[string]*model.Campaign{}}
	for _, c := range cs {
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, id string) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, apperrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) ListByTenant(_ context.Context, tenantID string, offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.campaigns {
		if c.TenantID != tenantID {
			continue
		}
		if status != "" && string(c.Status) != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, id string, status model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return apperrors.NewCampaignNotFound(id)
	}
	c.Status = status
	return nil
}

func (r *fakeCampaignRepo) CompleteFinished(_ context.Context) (int64, error) { return 0, nil }

func (r *fakeCampaignRepo) status(id string) model.CampaignStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id].Status
}

type fakeStepRepo struct {
	mu    sync.Mutex
	steps map[string]*model.CampaignStep
}

func newFakeStepRepo(ss ...*model.CampaignStep) *fakeStepRepo {
	r := &fakeStepRepo{steps: map[string]*model.CampaignStep{}}
	for _, s := range ss {
		r.steps[s.ID] = s
	}
	return r
}

func (r *fakeStepRepo) Create(_ context.Context, s *model.CampaignStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, existing := range r.steps {
		if existing.CampaignID == s.CampaignID && existing.StepOrder > max {
			max = existing.StepOrder
		}
	}
	s.StepOrder = max + 1
	r.steps[s.ID] = s
	return nil
}

func (r *fakeStepRepo) GetByID(_ context.Context, id string) (*model.CampaignStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.steps[id]
	if !ok {
		return nil, apperrors.NewStepNotFound(id)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStepRepo) ListByCampaign(_ context.Context, campaignID string) ([]*model.CampaignStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CampaignStep
	for _, s := range r.steps {
		if s.CampaignID == campaignID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (r *fakeStepRepo) Update(_ context.Context, s *model.CampaignStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.steps[s.ID]
	if !ok {
		return apperrors.NewStepNotFound(s.ID)
	}
	s.StepOrder = existing.StepOrder
	r.steps[s.ID] = s
	return nil
}

func (r *fakeStepRepo) DeleteAndCompact(_ context.Context, campaignID, stepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted, ok := r.steps[stepID]
	if !ok || deleted.CampaignID != campaignID {
		return apperrors.NewStepNotFound(stepID)
	}
	delete(r.steps, stepID)
	for _, s := range r.steps {
		if s.CampaignID == campaignID && s.StepOrder > deleted.StepOrder {
			s.StepOrder--
		}
	}
	return nil
}

func (r *fakeStepRepo) Reorder(_ context.Context, campaignID string, stepIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := map[string]*model.CampaignStep{}
	for _, s := range r.steps {
		if s.CampaignID == campaignID {
			existing[s.ID] = s
		}
	}
	if len(stepIDs) != len(existing) {
		return apperrors.ErrStepCountMismatch
	}
	seen := map[string]bool{}
	for _, id := range stepIDs {
		if _, ok := existing[id]; !ok || seen[id] {
			return apperrors.ErrStepCountMismatch
		}
		seen[id] = true
	}
	for i, id := range stepIDs {
		existing[id].StepOrder = i + 1
	}
	return nil
}

type fakeLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*model.Lead
}

func newFakeLeadRepo(ls ...*model.Lead) *fakeLeadRepo {
	r := &fakeLeadRepo{leads: map[string]*model.Lead{}}
	for _, l := range ls {
		r.leads[l.ID] = l
	}
	return r
}

func (r *fakeLeadRepo) Create(_ context.Context, l *model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[l.ID] = l
	return nil
}

func (r *fakeLeadRepo) GetByID(_ context.Context, id string) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, apperrors.NewLeadNotFound(id)
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLeadRepo) GetByIDs(_ context.Context, tenantID string, ids []string) ([]*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Lead
	for _, id := range ids {
		if l, ok := r.leads[id]; ok && l.TenantID == tenantID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeLeadRepo) UpdateStatus(_ context.Context, id string, status model.LeadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return apperrors.NewLeadNotFound(id)
	}
	l.Status = status
	return nil
}

func (r *fakeLeadRepo) status(id string) model.LeadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leads[id].Status
}

type fakeCampaignLeadRepo struct {
	mu          sync.Mutex
	enrollments map[string]*model.CampaignLead
	due         []repository.DueStep
	markSentErr error
	leads       *fakeLeadRepo
}

func enrollKey(campaignID, leadID string) string { return campaignID + "/" + leadID }

func newFakeCampaignLeadRepo(leads *fakeLeadRepo, cls ...*model.CampaignLead) *fakeCampaignLeadRepo {
	r := &fakeCampaignLeadRepo{enrollments: map[string]*model.CampaignLead{}, leads: leads}
	for _, cl := range cls {
		r.enrollments[enrollKey(cl.CampaignID, cl.LeadID)] = cl
	}
	return r
}

func (r *fakeCampaignLeadRepo) Get(_ context.Context, campaignID, leadID string) (*model.CampaignLead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cl, ok := r.enrollments[enrollKey(campaignID, leadID)]
	if !ok {
		return nil, nil
	}
	cp := *cl
	return &cp, nil
}

func (r *fakeCampaignLeadRepo) Enroll(_ context.Context, cl *model.CampaignLead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrollments[enrollKey(cl.CampaignID, cl.LeadID)] = cl
	return nil
}

func (r *fakeCampaignLeadRepo) ListPending(_ context.Context, campaignID string) ([]*model.CampaignLead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CampaignLead
	for _, cl := range r.enrollments {
		if cl.CampaignID == campaignID && cl.Status == model.EnrollmentPending {
			cp := *cl
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeadID < out[j].LeadID })
	return out, nil
}

func (r *fakeCampaignLeadRepo) ListByCampaign(_ context.Context, campaignID string, offset, limit int) ([]*model.CampaignLead, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CampaignLead
	for _, cl := range r.enrollments {
		if cl.CampaignID == campaignID {
			cp := *cl
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeadID < out[j].LeadID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeCampaignLeadRepo) ActiveElsewhere(_ context.Context, leadID, campaignID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cl := range r.enrollments {
		if cl.LeadID == leadID && cl.CampaignID != campaignID && cl.Status == model.EnrollmentActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCampaignLeadRepo) SetStatus(_ context.Context, campaignID, leadID string, status model.CampaignLeadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cl, ok := r.enrollments[enrollKey(campaignID, leadID)]; ok {
		cl.Status = status
	}
	return nil
}

func (r *fakeCampaignLeadRepo) MarkSent(ctx context.Context, campaignID, leadID string, stepOrder int, at time.Time) (bool, error) {
	r.mu.Lock()
	if r.markSentErr != nil {
		err := r.markSentErr
		r.mu.Unlock()
		return false, err
	}
	cl, ok := r.enrollments[enrollKey(campaignID, leadID)]
	if !ok ||
		(cl.Status != model.EnrollmentPending && cl.Status != model.EnrollmentActive) ||
		cl.CurrentStepOrder >= stepOrder {
		r.mu.Unlock()
		return false, nil
	}
	cl.Status = model.EnrollmentActive
	cl.CurrentStepOrder = stepOrder
	sent := at
	cl.LastSentAt = &sent
	r.mu.Unlock()

	if r.leads != nil {
		r.leads.mu.Lock()
		if l, ok := r.leads.leads[leadID]; ok && l.Status == model.LeadNew {
			l.Status = model.LeadContacted
		}
		r.leads.mu.Unlock()
	}
	return true, nil
}

func (r *fakeCampaignLeadRepo) Stop(ctx context.Context, campaignID, leadID string, leadStatus model.LeadStatus) error {
	r.mu.Lock()
	if cl, ok := r.enrollments[enrollKey(campaignID, leadID)]; ok {
		if cl.Status == model.EnrollmentPending || cl.Status == model.EnrollmentActive {
			cl.Status = model.EnrollmentStopped
		}
	}
	r.mu.Unlock()

	if r.leads != nil {
		return r.leads.UpdateStatus(ctx, leadID, leadStatus)
	}
	return nil
}

func (r *fakeCampaignLeadRepo) ListDueForNextStep(_ context.Context, _ time.Time, limit int) ([]repository.DueStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := r.due
	if limit > 0 && limit < len(due) {
		due = due[:limit]
	}
	r.due = nil
	return due, nil
}

func (r *fakeCampaignLeadRepo) CompleteFinished(_ context.Context) (int64, error) { return 0, nil }

func (r *fakeCampaignLeadRepo) get(campaignID, leadID string) model.CampaignLead {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.enrollments[enrollKey(campaignID, leadID)]
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.EmailAccount
}

func newFakeAccountRepo(as ...*model.EmailAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: map[string]*model.EmailAccount{}}
	for _, a := range as {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) Create(_ context.Context, a *model.EmailAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	return nil
}

func (r *fakeAccountRepo) PickActive(_ context.Context, tenantID string) (*model.EmailAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pick *model.EmailAccount
	for _, a := range r.accounts {
		if a.TenantID != tenantID || a.Status != model.AccountActive {
			continue
		}
		if pick == nil {
			pick = a
			continue
		}
		switch {
		case a.LastUsedAt == nil && pick.LastUsedAt != nil:
			pick = a
		case a.LastUsedAt != nil && pick.LastUsedAt != nil && a.LastUsedAt.Before(*pick.LastUsedAt):
			pick = a
		}
	}
	if pick == nil {
		return nil, nil
	}
	now := time.Now()
	pick.LastUsedAt = &now
	cp := *pick
	return &cp, nil
}

func (r *fakeAccountRepo) SetStatus(_ context.Context, id string, status model.EmailAccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		a.Status = status
	}
	return nil
}

func (r *fakeAccountRepo) CountByTenant(_ context.Context, tenantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.accounts {
		if a.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *fakeAccountRepo) status(id string) model.EmailAccountStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id].Status
}

type fakeUsageRepo struct {
	mu       sync.Mutex
	counters map[string]int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counters: map[string]int{}}
}

func usageKey(tenantID string, metric model.UsageMetric, period string) string {
	return tenantID + "|" + string(metric) + "|" + period
}

func (r *fakeUsageRepo) IncrementIfBelow(_ context.Context, tenantID string, metric model.UsageMetric, period string, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := usageKey(tenantID, metric, period)
	if r.counters[key] >= limit {
		return false, nil
	}
	r.counters[key]++
	return true, nil
}

func (r *fakeUsageRepo) Get(_ context.Context, tenantID string, metric model.UsageMetric, period string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[usageKey(tenantID, metric, period)], nil
}

type fakePlanRepo struct {
	plan model.Plan
}

func (r *fakePlanRepo) GetForTenant(_ context.Context, _ string) (*model.Plan, error) {
	cp := r.plan
	return &cp, nil
}

type fakeMetricsRepo struct {
	mu     sync.Mutex
	events []model.AnalyticsEvent
}

func (r *fakeMetricsRepo) RecordEvent(_ context.Context, ev model.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeMetricsRepo) all() []model.AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AnalyticsEvent, len(r.events))
	copy(out, r.events)
	return out
}

// --- queue and sender fakes ---

type fakeQueue struct {
	mu         sync.Mutex
	published  []queue.SendJob
	publishErr error
}

func (q *fakeQueue) Publish(_ context.Context, job queue.SendJob) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, job)
	return nil
}

func (q *fakeQueue) PublishBatch(ctx context.Context, jobs []queue.SendJob) error {
	for _, j := range jobs {
		if err := q.Publish(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

func (q *fakeQueue) PublishDelayed(ctx context.Context, job queue.SendJob, _ time.Duration) error {
	return q.Publish(ctx, job)
}

func (q *fakeQueue) Consume(ctx context.Context, _ queue.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (q *fakeQueue) jobs() []queue.SendJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.SendJob, len(q.published))
	copy(out, q.published)
	return out
}

type sentMail struct {
	AccountID string
	To        string
	Subject   string
	Body      string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (s *fakeSender) Send(_ context.Context, account *model.EmailAccount, to, subject, body string) (string, error) {
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{AccountID: account.ID, To: to, Subject: subject, Body: body})
	return "msg-" + to, nil
}

func (s *fakeSender) deliveries() []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMail, len(s.sent))
	copy(out, s.sent)
	return out
}
