package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	apperrors "subsync/internal/shared/errors"
	"subsync/internal/shared/keylock"
)

func statusPtr(s vo.SubscriptionStatus) *vo.SubscriptionStatus { return &s }
func timePtr(t time.Time) *time.Time                           { return &t }
func strPtr(s string) *string                                  { return &s }

type reconcileFixture struct {
	uc         *ReconcileSubscriptionUseCase
	subRepo    *fakeSubscriptionRepo
	clientRepo *fakeClientRepo
	planRepo   *fakePlanRepo
	cache      *fakeStatusCache
}

func newReconcileFixture() *reconcileFixture {
	subRepo := newFakeSubscriptionRepo()
	clientRepo := newFakeClientRepo()
	planRepo := newFakePlanRepo()
	cache := newFakeStatusCache()

	uc := NewReconcileSubscriptionUseCase(subRepo, clientRepo, planRepo, keylock.New(), discardLogger())
	uc.SetStatusCache(cache)

	return &reconcileFixture{uc: uc, subRepo: subRepo, clientRepo: clientRepo, planRepo: planRepo, cache: cache}
}

func fullUpdate(ref string, eventTime time.Time) *subscription.Update {
	endsAt := eventTime.AddDate(0, 1, 0)
	return &subscription.Update{
		ExternalReference: ref,
		Source:            subscription.UpdateSourceSubscription,
		EventTime:         eventTime,
		Status:            statusPtr(vo.StatusActive),
		StartsAt:          timePtr(eventTime),
		EndsAt:            timePtr(endsAt),
		CustomerEmail:     "merchant@example.com",
	}
}

func TestReconcile_CreatesSubscriptionAndClient(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-42", eventTime))
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.True(t, result.Applied)
	assert.Equal(t, vo.StatusActive, result.Subscription.Status())
	assert.Equal(t, "wc-sub-42", result.Subscription.ExternalReference())
	require.NotNil(t, result.Subscription.EndsAt())

	// Establishing the first period is not a renewal.
	assert.Equal(t, 0, result.Subscription.BillingCycleCount())

	owner, err := f.clientRepo.GetByEmail(context.Background(), "merchant@example.com")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, owner.ID(), result.Subscription.ClientID())
}

func TestReconcile_ReusesExistingClient(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-1", eventTime))
	require.NoError(t, err)
	_, err = f.uc.Execute(context.Background(), fullUpdate("wc-sub-2", eventTime.Add(time.Minute)))
	require.NoError(t, err)

	assert.Equal(t, 1, f.clientRepo.createCalls)
}

func TestReconcile_RecordsCustomerExternalIDs(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	update := fullUpdate("wc-sub-7", eventTime)
	update.CustomerExternalIDs = map[string]string{"stripe": "cus_123"}
	_, err := f.uc.Execute(context.Background(), update)
	require.NoError(t, err)

	owner, err := f.clientRepo.GetByEmail(context.Background(), "merchant@example.com")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "cus_123", owner.ExternalIDs()["stripe"])

	// First write wins per provider.
	later := fullUpdate("wc-sub-7", eventTime.Add(time.Minute))
	later.CustomerExternalIDs = map[string]string{"stripe": "cus_456"}
	_, err = f.uc.Execute(context.Background(), later)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", owner.ExternalIDs()["stripe"])
}

func TestReconcile_DropsStaleEvent(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-9", eventTime))
	require.NoError(t, err)
	syncedAt := result.Subscription.LastSyncedAt()

	stale := fullUpdate("wc-sub-9", syncedAt.Add(-time.Hour))
	stale.Status = statusPtr(vo.StatusGrace)

	result, err = f.uc.Execute(context.Background(), stale)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, vo.StatusActive, result.Subscription.Status())
}

func TestReconcile_RenewalCountsOncePerDistinctEndDate(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-5", eventTime))
	require.NoError(t, err)
	require.Equal(t, 0, result.Subscription.BillingCycleCount())
	firstEnd := *result.Subscription.EndsAt()

	renewal := fullUpdate("wc-sub-5", eventTime.Add(time.Hour))
	renewal.EndsAt = timePtr(firstEnd.AddDate(0, 1, 0))
	result, err = f.uc.Execute(context.Background(), renewal)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Subscription.BillingCycleCount())

	// Redelivery of the same renewal does not count again.
	redelivery := fullUpdate("wc-sub-5", eventTime.Add(2*time.Hour))
	redelivery.EndsAt = timePtr(firstEnd.AddDate(0, 1, 0))
	result, err = f.uc.Execute(context.Background(), redelivery)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, 1, result.Subscription.BillingCycleCount())
}

func TestReconcile_IgnoresBackwardEndDate(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-6", eventTime))
	require.NoError(t, err)
	established := *result.Subscription.EndsAt()

	backward := fullUpdate("wc-sub-6", eventTime.Add(time.Hour))
	backward.EndsAt = timePtr(established.AddDate(0, 0, -7))

	result, err = f.uc.Execute(context.Background(), backward)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.True(t, result.Subscription.EndsAt().Equal(established))
}

func TestReconcile_EnrichmentFillsMissingFields(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	endsAt := eventTime.AddDate(0, 1, 0)

	fetcher := &fakeFetcher{update: &subscription.Update{
		ExternalReference: "wc-sub-11",
		Source:            subscription.UpdateSourceEnrichment,
		EventTime:         eventTime,
		Status:            statusPtr(vo.StatusActive),
		EndsAt:            timePtr(endsAt),
		CustomerEmail:     "fetched@example.com",
	}}
	f.uc.SetFetcher(fetcher)

	// Order events carry no end date, so this triggers enrichment.
	partial := &subscription.Update{
		ExternalReference: "wc-sub-11",
		Source:            subscription.UpdateSourceOrder,
		EventTime:         eventTime,
		Status:            statusPtr(vo.StatusActive),
	}

	result, err := f.uc.Execute(context.Background(), partial)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.True(t, result.Created)
	require.NotNil(t, result.Subscription.EndsAt())
	assert.True(t, result.Subscription.EndsAt().Equal(endsAt))
}

func TestReconcile_EnrichmentNotCalledWhenComplete(t *testing.T) {
	f := newReconcileFixture()
	fetcher := &fakeFetcher{}
	f.uc.SetFetcher(fetcher)

	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-12", eventTime))
	require.NoError(t, err)
	assert.Equal(t, 0, fetcher.calls)
}

func TestReconcile_EnrichmentFailureDegradesForExistingRecord(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-13", eventTime))
	require.NoError(t, err)

	f.uc.SetFetcher(&fakeFetcher{err: apperrors.NewUpstreamTransportError("fetch subscription", assert.AnError)})

	partial := &subscription.Update{
		ExternalReference: "wc-sub-13",
		Source:            subscription.UpdateSourceOrder,
		EventTime:         eventTime.Add(time.Hour),
		Status:            statusPtr(vo.StatusGrace),
	}

	result, err := f.uc.Execute(context.Background(), partial)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, vo.StatusGrace, result.Subscription.Status())
}

func TestReconcile_EnrichmentFailureFatalForCreationWithoutIdentity(t *testing.T) {
	f := newReconcileFixture()
	f.uc.SetFetcher(&fakeFetcher{err: apperrors.NewUpstreamTransportError("fetch subscription", assert.AnError)})

	partial := &subscription.Update{
		ExternalReference: "wc-sub-14",
		Source:            subscription.UpdateSourceOrder,
		EventTime:         time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:            statusPtr(vo.StatusActive),
	}

	_, err := f.uc.Execute(context.Background(), partial)
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamError(err))
	assert.Equal(t, 0, f.subRepo.createCalls)
}

func TestReconcile_ResolvesPlanHint(t *testing.T) {
	f := newReconcileFixture()

	plan, err := subscription.NewPlan("Pro", "pro", "prod-99", 1900, "USD", "month", 30)
	require.NoError(t, err)
	require.NoError(t, plan.SetID(3))
	f.planRepo.byProductID["prod-99"] = plan

	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	update := fullUpdate("wc-sub-15", eventTime)
	update.PlanHint = strPtr("prod-99")

	result, err := f.uc.Execute(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, uint(3), result.Subscription.PlanID())
}

func TestReconcile_UnresolvedPlanHintIsNotFatal(t *testing.T) {
	f := newReconcileFixture()

	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	update := fullUpdate("wc-sub-16", eventTime)
	update.PlanHint = strPtr("prod-unknown")

	result, err := f.uc.Execute(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, uint(0), result.Subscription.PlanID())
}

func TestReconcile_CancellationFirstWriteWins(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cancelledAt := eventTime.AddDate(0, 0, 10)

	update := fullUpdate("wc-sub-17", eventTime)
	update.Status = statusPtr(vo.StatusExpired)
	update.CancelledAt = timePtr(cancelledAt)

	result, err := f.uc.Execute(context.Background(), update)
	require.NoError(t, err)
	require.NotNil(t, result.Subscription.CancelledAt())
	assert.True(t, result.Subscription.CancelledAt().Equal(cancelledAt))

	later := fullUpdate("wc-sub-17", eventTime.Add(time.Hour))
	later.Status = statusPtr(vo.StatusExpired)
	later.CancelledAt = timePtr(cancelledAt.AddDate(0, 0, 5))
	later.EndsAt = nil

	result, err = f.uc.Execute(context.Background(), later)
	require.NoError(t, err)
	assert.True(t, result.Subscription.CancelledAt().Equal(cancelledAt))
}

func TestReconcile_InvalidatesStatusCacheOnWrite(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-18", eventTime))
	require.NoError(t, err)
	assert.Contains(t, f.cache.invalidated, result.Subscription.SID())
}

func TestReconcile_RejectsInvalidUpdate(t *testing.T) {
	f := newReconcileFixture()

	_, err := f.uc.Execute(context.Background(), &subscription.Update{
		Source:    subscription.UpdateSourceOrder,
		EventTime: time.Now().UTC(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestReconcile_ProvenanceStampedOnWrite(t *testing.T) {
	f := newReconcileFixture()
	eventTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	result, err := f.uc.Execute(context.Background(), fullUpdate("wc-sub-19", eventTime))
	require.NoError(t, err)
	assert.Equal(t, subscription.SourceWebhook, result.Subscription.Metadata()[subscription.MetaSyncedBy])
}
