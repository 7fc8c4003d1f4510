package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"subsync/internal/application/billing"
	"subsync/internal/application/billing/usecases"
	"subsync/internal/domain/subscription"
	vo "subsync/internal/domain/subscription/valueobjects"
	"subsync/internal/infrastructure/persistence/models"
	"subsync/internal/infrastructure/repository"
	"subsync/internal/interfaces/http/handlers"
	"subsync/internal/interfaces/http/middleware"
	"subsync/internal/interfaces/http/routes"
	sharedConfig "subsync/internal/shared/config"
	"subsync/internal/shared/keylock"
	"subsync/internal/shared/logger"
)

const webhookTestSecret = "whsec_handler_test"

type webhookFixture struct {
	engine           *gin.Engine
	subscriptionRepo subscription.SubscriptionRepository
	now              time.Time
}

func setupWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.SubscriptionModel{}, &models.ClientModel{}, &models.PlanModel{}))

	log := logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))

	subscriptionRepo := repository.NewSubscriptionRepository(db, log)
	clientRepo := repository.NewClientRepository(db, log)
	planRepo := repository.NewPlanRepository(db, log)

	reconcileUC := usecases.NewReconcileSubscriptionUseCase(subscriptionRepo, clientRepo, planRepo, keylock.New(), log)

	now := time.Now().UTC().Truncate(time.Second)

	signatureMiddleware := middleware.NewSignatureMiddleware(&sharedConfig.WebhookConfig{
		SigningSecret:       webhookTestSecret,
		SignatureTTLSeconds: 300,
	}, log)

	engine := gin.New()
	routes.SetupWebhookRoutes(engine, &routes.WebhookRouteConfig{
		WebhookHandler:      handlers.NewWebhookHandler(billing.NewNormalizer(log), reconcileUC, log),
		SignatureMiddleware: signatureMiddleware,
	})

	return &webhookFixture{
		engine:           engine,
		subscriptionRepo: subscriptionRepo,
		now:              now,
	}
}

func (f *webhookFixture) postSigned(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	return f.postSignedAt(t, path, payload, f.now)
}

func (f *webhookFixture) postSignedAt(t *testing.T, path string, payload any, at time.Time) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ts := strconv.FormatInt(at.Unix(), 10)
	req.Header.Set(middleware.TimestampHeader, ts)
	req.Header.Set(middleware.SignatureHeader, middleware.Sign([]byte(webhookTestSecret), ts, body))

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func subscriptionPayload(id int, status string) map[string]any {
	return map[string]any{
		"subscription_id": id,
		"status":          status,
		"started_on":      "2025-05-01",
		"expires_on":      "2025-06-01",
		"customer": map[string]any{
			"email": "buyer@example.com",
		},
	}
}

func TestWebhookHandler_SubscriptionEventCreatesRecord(t *testing.T) {
	f := setupWebhookFixture(t)

	w := f.postSigned(t, "/integrations/billing/subscriptions", subscriptionPayload(501, "active"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Status  string `json:"status"`
			SID     string `json:"sid"`
			Created bool   `json:"created"`
			Applied bool   `json:"applied"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "accepted", resp.Data.Status)
	assert.True(t, resp.Data.Created)
	assert.True(t, resp.Data.Applied)

	sub, err := f.subscriptionRepo.GetByExternalReference(context.Background(), "wc-sub-501")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, vo.StatusActive, sub.Status())
	assert.Equal(t, resp.Data.SID, sub.SID())
}

func TestWebhookHandler_RedeliveryIsIdempotent(t *testing.T) {
	f := setupWebhookFixture(t)

	payload := subscriptionPayload(502, "active")
	require.Equal(t, http.StatusOK, f.postSigned(t, "/integrations/billing/subscriptions", payload).Code)
	require.Equal(t, http.StatusOK, f.postSigned(t, "/integrations/billing/subscriptions", payload).Code)

	sub, err := f.subscriptionRepo.GetByExternalReference(context.Background(), "wc-sub-502")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, 0, sub.BillingCycleCount(), "redelivered first period must not count as renewal")
}

func TestWebhookHandler_StaleEventIsDropped(t *testing.T) {
	f := setupWebhookFixture(t)

	require.Equal(t, http.StatusOK, f.postSigned(t, "/integrations/billing/subscriptions", subscriptionPayload(503, "active")).Code)

	// An older delivery carrying a contradictory status must not win.
	w := f.postSignedAt(t, "/integrations/billing/subscriptions", subscriptionPayload(503, "cancelled"), f.now.Add(-2*time.Minute))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Applied bool `json:"applied"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Applied)

	sub, err := f.subscriptionRepo.GetByExternalReference(context.Background(), "wc-sub-503")
	require.NoError(t, err)
	assert.Equal(t, vo.StatusActive, sub.Status())
}

func TestWebhookHandler_UnknownStatusRejected(t *testing.T) {
	f := setupWebhookFixture(t)

	w := f.postSigned(t, "/integrations/billing/subscriptions", subscriptionPayload(504, "paused"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	sub, err := f.subscriptionRepo.GetByExternalReference(context.Background(), "wc-sub-504")
	require.NoError(t, err)
	assert.Nil(t, sub, "rejected events must not write")
}

func TestWebhookHandler_MalformedPayloadRejected(t *testing.T) {
	f := setupWebhookFixture(t)

	w := f.postSigned(t, "/integrations/billing/subscriptions", map[string]any{"status": "active"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Message string `json:"message"`
			Details string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error.Details, "SubscriptionID", "missing field must be named in the details")
}

func TestWebhookHandler_InvalidCurrencyRejectedWithFieldDetail(t *testing.T) {
	f := setupWebhookFixture(t)

	order := map[string]any{
		"order_id": 9200,
		"currency": "USDX",
		"total":    10.00,
		"status":   "completed",
		"customer": map[string]any{
			"email": "buyer@example.com",
		},
	}
	w := f.postSigned(t, "/integrations/billing/orders", order)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var resp struct {
		Error struct {
			Details string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error.Details, "Currency")
	assert.Contains(t, resp.Error.Details, "iso4217")
}

func TestWebhookHandler_UnsignedDeliveryRejected(t *testing.T) {
	f := setupWebhookFixture(t)

	body, err := json.Marshal(subscriptionPayload(505, "active"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/integrations/billing/subscriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	sub, repoErr := f.subscriptionRepo.GetByExternalReference(context.Background(), "wc-sub-505")
	require.NoError(t, repoErr)
	assert.Nil(t, sub)
}

func TestWebhookHandler_RenewalOrderExtendsSubscription(t *testing.T) {
	f := setupWebhookFixture(t)

	require.Equal(t, http.StatusOK, f.postSigned(t, "/integrations/billing/subscriptions", subscriptionPayload(506, "active")).Code)

	subID := 506
	order := map[string]any{
		"order_id":        9001,
		"currency":        "USD",
		"total":           19.99,
		"status":          "completed",
		"subscription_id": subID,
		"customer": map[string]any{
			"email": "buyer@example.com",
		},
	}
	w := f.postSignedAt(t, "/integrations/billing/orders", order, f.now.Add(time.Minute))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sub, err := f.subscriptionRepo.GetByExternalReference(context.Background(), "wc-sub-506")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, vo.StatusActive, sub.Status())
}

func TestWebhookHandler_OneOffOrderTrackedByOrderReference(t *testing.T) {
	f := setupWebhookFixture(t)

	order := map[string]any{
		"order_id": 9100,
		"currency": "USD",
		"total":    49.00,
		"status":   "completed",
		"customer": map[string]any{
			"email": "oneoff@example.com",
		},
	}
	w := f.postSigned(t, "/integrations/billing/orders", order)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sub, err := f.subscriptionRepo.GetByExternalReference(context.Background(), "wc-order-9100")
	require.NoError(t, err)
	require.NotNil(t, sub)
}
