package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/infrastructure/persistence/models"
	"subsync/internal/shared/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.SubscriptionModel{}, &models.ClientModel{}, &models.PlanModel{})
	require.NoError(t, err)

	return db
}

func testLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func createTestSubscription(t *testing.T, ref string, status vo.SubscriptionStatus, endsAt *time.Time) *subscription.Subscription {
	t.Helper()

	sub, err := subscription.NewSubscription(ref, 1, 0)
	require.NoError(t, err)
	if endsAt != nil {
		require.NoError(t, sub.SetEndsAt(*endsAt))
	}
	if status != vo.StatusPending {
		require.NoError(t, sub.ApplyStatus(status))
	}
	return sub
}

func TestSubscriptionRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db, testLogger())
	ctx := context.Background()

	endsAt := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	sub := createTestSubscription(t, "wc-sub-100", vo.StatusActive, &endsAt)
	sub.Touch(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), subscription.SourceWebhook)

	require.NoError(t, repo.Create(ctx, sub))
	assert.NotZero(t, sub.ID())

	found, err := repo.GetByExternalReference(ctx, "wc-sub-100")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sub.SID(), found.SID())
	assert.Equal(t, vo.StatusActive, found.Status())
	require.NotNil(t, found.EndsAt())
	assert.True(t, found.EndsAt().Equal(endsAt))
	assert.Equal(t, subscription.SourceWebhook, found.Metadata()[subscription.MetaSyncedBy])

	bySID, err := repo.GetBySID(ctx, sub.SID())
	require.NoError(t, err)
	require.NotNil(t, bySID)
	assert.Equal(t, sub.ID(), bySID.ID())
}

func TestSubscriptionRepository_GetByExternalReferenceMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db, testLogger())

	found, err := repo.GetByExternalReference(context.Background(), "wc-sub-nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSubscriptionRepository_DuplicateExternalReference(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db, testLogger())
	ctx := context.Background()

	first := createTestSubscription(t, "wc-sub-dup", vo.StatusActive, nil)
	require.NoError(t, repo.Create(ctx, first))

	second := createTestSubscription(t, "wc-sub-dup", vo.StatusActive, nil)
	assert.Error(t, repo.Create(ctx, second))
}

func TestSubscriptionRepository_UpdateOptimisticLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db, testLogger())
	ctx := context.Background()

	sub := createTestSubscription(t, "wc-sub-101", vo.StatusActive, nil)
	require.NoError(t, repo.Create(ctx, sub))

	// Two readers load the same stored version.
	first, err := repo.GetByExternalReference(ctx, "wc-sub-101")
	require.NoError(t, err)
	second, err := repo.GetByExternalReference(ctx, "wc-sub-101")
	require.NoError(t, err)

	first.Touch(time.Now().UTC(), subscription.SourceWebhook)
	require.NoError(t, repo.Update(ctx, first))

	second.Touch(time.Now().UTC(), subscription.SourceSweep)
	err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, subscription.ErrStaleVersion)
}

func TestSubscriptionRepository_UpdatePersistsLifecycleFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db, testLogger())
	ctx := context.Background()

	endsAt := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	sub := createTestSubscription(t, "wc-sub-102", vo.StatusActive, &endsAt)
	require.NoError(t, repo.Create(ctx, sub))

	loaded, err := repo.GetByExternalReference(ctx, "wc-sub-102")
	require.NoError(t, err)
	require.NoError(t, loaded.Renew(endsAt.AddDate(0, 1, 0)))
	loaded.Touch(time.Now().UTC(), subscription.SourceWebhook)
	require.NoError(t, repo.Update(ctx, loaded))

	reloaded, err := repo.GetByExternalReference(ctx, "wc-sub-102")
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.BillingCycleCount())
	assert.True(t, reloaded.EndsAt().Equal(endsAt.AddDate(0, 1, 0)))
	require.NotNil(t, reloaded.LastRenewalAt())
}

func TestSubscriptionRepository_FindOverduePage(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db, testLogger())
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	past := now.AddDate(0, 0, -5)
	future := now.AddDate(0, 1, 0)

	overdueActive := createTestSubscription(t, "wc-sub-201", vo.StatusActive, &past)
	overdueGrace := createTestSubscription(t, "wc-sub-202", vo.StatusGrace, &past)
	currentActive := createTestSubscription(t, "wc-sub-203", vo.StatusActive, &future)
	overdueExpired := createTestSubscription(t, "wc-sub-204", vo.StatusExpired, &past)
	pendingNoPeriod := createTestSubscription(t, "wc-sub-205", vo.StatusPending, nil)

	for _, sub := range []*subscription.Subscription{overdueActive, overdueGrace, currentActive, overdueExpired, pendingNoPeriod} {
		require.NoError(t, repo.Create(ctx, sub))
	}

	page, err := repo.FindOverduePage(ctx, now, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)

	refs := []string{page[0].ExternalReference(), page[1].ExternalReference()}
	assert.Contains(t, refs, "wc-sub-201")
	assert.Contains(t, refs, "wc-sub-202")

	// Paging walks the same ordering.
	firstPage, err := repo.FindOverduePage(ctx, now, 0, 1)
	require.NoError(t, err)
	secondPage, err := repo.FindOverduePage(ctx, now, 1, 1)
	require.NoError(t, err)
	require.Len(t, firstPage, 1)
	require.Len(t, secondPage, 1)
	assert.NotEqual(t, firstPage[0].ID(), secondPage[0].ID())
}

func TestSubscriptionRepository_ListAndCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db, testLogger())
	ctx := context.Background()

	active := createTestSubscription(t, "wc-sub-301", vo.StatusActive, nil)
	grace := createTestSubscription(t, "wc-sub-302", vo.StatusGrace, nil)
	require.NoError(t, repo.Create(ctx, active))
	require.NoError(t, repo.Create(ctx, grace))

	statusFilter := "active"
	subs, total, err := repo.List(ctx, subscription.SubscriptionFilter{
		Status:   &statusFilter,
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, subs, 1)
	assert.Equal(t, "wc-sub-301", subs[0].ExternalReference())

	count, err := repo.CountByStatus(ctx, vo.StatusGrace)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
