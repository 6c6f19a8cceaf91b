package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldreach/coldreach-backend/internal/model"
	"github.com/coldreach/coldreach-backend/internal/service"
)

func newBilling(plan model.Plan, accounts *fakeAccountRepo) (*service.BillingService, *fakeUsageRepo) {
	usage := newFakeUsageRepo()
	if accounts == nil {
		accounts = newFakeAccountRepo()
	}
	return &service.BillingService{
		Plans:    &fakePlanRepo{plan: plan},
		Usage:    usage,
		Accounts: accounts,
		Logger:   discardLogger(),
	}, usage
}

func TestCheckAndIncrementWithinLimit(t *testing.T) {
	billing, usage := newBilling(model.Plan{Name: "PRO", MonthlySends: 3}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := billing.CheckAndIncrement(ctx, "t1", model.MetricSends)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := billing.CheckAndIncrement(ctx, "t1", model.MetricSends)
	require.NoError(t, err)
	assert.False(t, ok, "fourth send must be denied")

	count, _ := usage.Get(ctx, "t1", model.MetricSends, model.CurrentPeriod(time.Now()))
	assert.Equal(t, 3, count, "denied attempts must not increment")
}

func TestCheckAndIncrementZeroLimitDenies(t *testing.T) {
	billing, _ := newBilling(model.Plan{Name: "FREE", MonthlySends: 0}, nil)

	ok, err := billing.CheckAndIncrement(context.Background(), "t1", model.MetricSends)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Concurrent consumers must never overshoot the limit: with N goroutines and
// limit L, exactly min(N, L) succeed.
func TestCheckAndIncrementConcurrent(t *testing.T) {
	const limit = 50
	const goroutines = 200

	billing, usage := newBilling(model.Plan{Name: "PRO", MonthlySends: limit}, nil)
	ctx := context.Background()

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := billing.CheckAndIncrement(ctx, "t1", model.MetricSends)
			require.NoError(t, err)
			if ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, granted.Load())
	count, _ := usage.Get(ctx, "t1", model.MetricSends, model.CurrentPeriod(time.Now()))
	assert.Equal(t, limit, count)
}

func TestCheckAndIncrementInboxesIsStateBased(t *testing.T) {
	accounts := newFakeAccountRepo(
		&model.EmailAccount{ID: "a1", TenantID: "t1", Status: model.AccountActive},
		&model.EmailAccount{ID: "a2", TenantID: "t1", Status: model.AccountError},
	)
	billing, usage := newBilling(model.Plan{Name: "PRO", InboxLimit: 3}, accounts)
	ctx := context.Background()

	// 2 of 3 connected: allowed, and allowed again. Disconnecting an
	// account frees the slot, so nothing cumulative is recorded.
	for i := 0; i < 2; i++ {
		ok, err := billing.CheckAndIncrement(ctx, "t1", model.MetricInboxes)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	count, _ := usage.Get(ctx, "t1", model.MetricInboxes, model.CurrentPeriod(time.Now()))
	assert.Zero(t, count, "INBOXES is compared live, never incremented")

	require.NoError(t, accounts.Create(ctx, &model.EmailAccount{ID: "a3", TenantID: "t1", Status: model.AccountActive}))
	ok, err := billing.CheckAndIncrement(ctx, "t1", model.MetricInboxes)
	require.NoError(t, err)
	assert.False(t, ok, "at the limit the next connect is denied")
}

func TestPlanAndUsage(t *testing.T) {
	billing, _ := newBilling(model.Plan{Name: "PRO", MonthlySends: 100, InboxLimit: 5, AILimit: 50}, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := billing.CheckAndIncrement(ctx, "t1", model.MetricSends)
		require.NoError(t, err)
	}

	pu, err := billing.PlanAndUsage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "PRO", pu.Plan.Name)
	assert.Equal(t, 4, pu.Usage["sends"])
}
