package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldreach/coldreach-backend/internal/model"
	"github.com/coldreach/coldreach-backend/internal/repository"
	"github.com/coldreach/coldreach-backend/internal/service"
)

func TestSchedulerEnqueuesDueSteps(t *testing.T) {
	leads := newFakeLeadRepo()
	enrolls := newFakeCampaignLeadRepo(leads)
	enrolls.due = []repository.DueStep{
		{TenantID: "t1", CampaignID: "c1", LeadID: "l1", StepID: "s2"},
		{TenantID: "t1", CampaignID: "c1", LeadID: "l2", StepID: "s2"},
	}
	q := &fakeQueue{}

	scheduler := &service.StepScheduler{
		CampaignLeads: enrolls,
		Campaigns:     newFakeCampaignRepo(),
		Queue:         q,
		Logger:        discardLogger(),
		BatchSize:     100,
	}

	enqueued, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, enqueued)

	jobs := q.jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "s2", jobs[0].StepID)

	// The sweep claimed the rows; an immediate second sweep finds nothing.
	enqueued, err = scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, enqueued)
}

func TestSchedulerHonorsBatchSize(t *testing.T) {
	leads := newFakeLeadRepo()
	enrolls := newFakeCampaignLeadRepo(leads)
	for i := 0; i < 5; i++ {
		enrolls.due = append(enrolls.due, repository.DueStep{
			TenantID: "t1", CampaignID: "c1", LeadID: string(rune('a' + i)), StepID: "s2",
		})
	}
	q := &fakeQueue{}

	scheduler := &service.StepScheduler{
		CampaignLeads: enrolls,
		Campaigns:     newFakeCampaignRepo(),
		Queue:         q,
		Logger:        discardLogger(),
		BatchSize:     3,
	}

	enqueued, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, enqueued)
}

func TestSchedulerCompletesMixedSweep(t *testing.T) {
	leads := newFakeLeadRepo(&model.Lead{ID: "l1", TenantID: "t1", Status: model.LeadContacted})
	enrolls := newFakeCampaignLeadRepo(leads)
	q := &fakeQueue{}

	scheduler := &service.StepScheduler{
		CampaignLeads: enrolls,
		Campaigns:     newFakeCampaignRepo(),
		Queue:         q,
		Logger:        discardLogger(),
		BatchSize:     100,
	}

	// Empty sweep is a no-op, not an error.
	enqueued, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, enqueued)
	assert.Empty(t, q.jobs())
}
