package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"subsync/internal/application/billing"
	"subsync/internal/application/billing/usecases"
	"subsync/internal/domain/subscription"
	"subsync/internal/interfaces/http/middleware"
	apperrors "subsync/internal/shared/errors"
	"subsync/internal/shared/logger"
	"subsync/internal/shared/utils"
)

// WebhookHandler receives billing platform deliveries and feeds them into the
// reconciliation pipeline.
type WebhookHandler struct {
	normalizer  *billing.Normalizer
	reconcileUC *usecases.ReconcileSubscriptionUseCase
	logger      logger.Interface
}

func NewWebhookHandler(
	normalizer *billing.Normalizer,
	reconcileUC *usecases.ReconcileSubscriptionUseCase,
	logger logger.Interface,
) *WebhookHandler {
	return &WebhookHandler{
		normalizer:  normalizer,
		reconcileUC: reconcileUC,
		logger:      logger,
	}
}

// HandleOrderEvent processes an order webhook delivery.
func (h *WebhookHandler) HandleOrderEvent(c *gin.Context) {
	var event billing.OrderEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warnw("rejected malformed order event", "error", err)
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid order payload", bindingDetails(err)))
		return
	}

	eventTime := middleware.EventTimeFromContext(c)

	update, err := h.normalizer.NormalizeOrder(&event, eventTime)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.applyUpdate(c, update)
}

// HandleSubscriptionEvent processes a subscription webhook delivery.
func (h *WebhookHandler) HandleSubscriptionEvent(c *gin.Context) {
	var event billing.SubscriptionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warnw("rejected malformed subscription event", "error", err)
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid subscription payload", bindingDetails(err)))
		return
	}

	eventTime := middleware.EventTimeFromContext(c)

	update, err := h.normalizer.NormalizeSubscription(&event, eventTime)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	h.applyUpdate(c, update)
}

func (h *WebhookHandler) applyUpdate(c *gin.Context, update *subscription.Update) {
	result, err := h.reconcileUC.Execute(c.Request.Context(), update)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "event accepted", gin.H{
		"status":  "accepted",
		"sid":     result.Subscription.SID(),
		"created": result.Created,
		"applied": result.Applied,
	})
}

// bindingDetails flattens a binding failure into per-field detail lines so a
// sender can see which fields were rejected and why.
func bindingDetails(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
