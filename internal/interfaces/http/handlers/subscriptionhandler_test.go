package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"subsync/internal/application/billing/usecases"
	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/infrastructure/persistence/models"
	"subsync/internal/infrastructure/repository"
	"subsync/internal/interfaces/http/handlers"
	"subsync/internal/interfaces/http/routes"
	"subsync/internal/shared/logger"
)

type subscriptionFixture struct {
	engine *gin.Engine
	repo   subscription.SubscriptionRepository
}

func setupSubscriptionFixture(t *testing.T) *subscriptionFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SubscriptionModel{}, &models.ClientModel{}, &models.PlanModel{}))

	log := logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
	repo := repository.NewSubscriptionRepository(db, log)

	handler := handlers.NewSubscriptionHandler(
		usecases.NewGetSubscriptionUseCase(repo, log),
		usecases.NewGetSubscriptionStatusUseCase(repo, log),
		usecases.NewListSubscriptionsUseCase(repo, log),
		log,
	)

	engine := gin.New()
	routes.SetupSubscriptionRoutes(engine, &routes.SubscriptionRouteConfig{
		SubscriptionHandler: handler,
	})

	return &subscriptionFixture{engine: engine, repo: repo}
}

func (f *subscriptionFixture) seed(t *testing.T, ref string, status vo.SubscriptionStatus, endsAt time.Time) *subscription.Subscription {
	t.Helper()

	sub, err := subscription.NewSubscription(ref, 1, 0)
	require.NoError(t, err)
	require.NoError(t, sub.SetEndsAt(endsAt))
	if status != vo.StatusPending {
		require.NoError(t, sub.ApplyStatus(status))
	}
	sub.Touch(time.Now().UTC(), subscription.SourceWebhook)
	require.NoError(t, f.repo.Create(context.Background(), sub))
	return sub
}

func (f *subscriptionFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestSubscriptionHandler_GetBySID(t *testing.T) {
	f := setupSubscriptionFixture(t)
	sub := f.seed(t, "wc-sub-700", vo.StatusActive, time.Now().UTC().Add(30*24*time.Hour))

	w := f.get(t, "/api/v1/subscriptions/"+sub.SID())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool                      `json:"success"`
		Data    usecases.SubscriptionDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, sub.SID(), resp.Data.SID)
	assert.Equal(t, "wc-sub-700", resp.Data.ExternalReference)
	assert.Equal(t, "active", resp.Data.Status)
}

func TestSubscriptionHandler_GetUnknownSID(t *testing.T) {
	f := setupSubscriptionFixture(t)

	w := f.get(t, "/api/v1/subscriptions/sub_doesnotexist")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptionHandler_GetRejectsForeignPrefix(t *testing.T) {
	f := setupSubscriptionFixture(t)

	w := f.get(t, "/api/v1/subscriptions/cli_abc123")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSubscriptionHandler_StatusReportsOverdueAsExpired(t *testing.T) {
	f := setupSubscriptionFixture(t)
	sub := f.seed(t, "wc-sub-701", vo.StatusActive, time.Now().UTC().Add(-24*time.Hour))

	w := f.get(t, "/api/v1/subscriptions/"+sub.SID()+"/status")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data usecases.SubscriptionStatusDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "active", resp.Data.Status)
	assert.Equal(t, "expired", resp.Data.EffectiveStatus)
	assert.False(t, resp.Data.CanUseService)
}

func TestSubscriptionHandler_ClientStatus(t *testing.T) {
	f := setupSubscriptionFixture(t)
	f.seed(t, "wc-sub-710", vo.StatusActive, time.Now().UTC().Add(30*24*time.Hour))

	w := f.get(t, "/api/v1/clients/1/subscription/status")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data usecases.SubscriptionStatusDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "active", resp.Data.EffectiveStatus)
	assert.True(t, resp.Data.CanUseService)
}

func TestSubscriptionHandler_ClientStatusUnknownClient(t *testing.T) {
	f := setupSubscriptionFixture(t)

	w := f.get(t, "/api/v1/clients/99/subscription/status")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptionHandler_ListFiltersByStatus(t *testing.T) {
	f := setupSubscriptionFixture(t)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	f.seed(t, "wc-sub-702", vo.StatusActive, future)
	f.seed(t, "wc-sub-703", vo.StatusActive, future)
	f.seed(t, "wc-sub-704", vo.StatusInactive, future)

	w := f.get(t, "/api/v1/subscriptions?status=active")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Items []usecases.SubscriptionDTO `json:"items"`
			Total int64                      `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.Total)
	assert.Len(t, resp.Data.Items, 2)
}

func TestSubscriptionHandler_ListRejectsBadClientID(t *testing.T) {
	f := setupSubscriptionFixture(t)

	w := f.get(t, "/api/v1/subscriptions?client_id=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionHandler_StatusBreakdown(t *testing.T) {
	f := setupSubscriptionFixture(t)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	f.seed(t, "wc-sub-705", vo.StatusActive, future)
	f.seed(t, "wc-sub-706", vo.StatusGrace, future)

	w := f.get(t, "/api/v1/subscriptions/breakdown")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data map[string]int64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Data["active"])
	assert.Equal(t, int64(1), resp.Data["grace"])
}
