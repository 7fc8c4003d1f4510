package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"subsync/internal/application/billing/usecases"
	"subsync/internal/shared/id"
	"subsync/internal/shared/logger"
	"subsync/internal/shared/utils"
)

// SubscriptionHandler serves the read side of the subscription store.
type SubscriptionHandler struct {
	getUC    *usecases.GetSubscriptionUseCase
	statusUC *usecases.GetSubscriptionStatusUseCase
	listUC   *usecases.ListSubscriptionsUseCase
	logger   logger.Interface
}

func NewSubscriptionHandler(
	getUC *usecases.GetSubscriptionUseCase,
	statusUC *usecases.GetSubscriptionStatusUseCase,
	listUC *usecases.ListSubscriptionsUseCase,
	logger logger.Interface,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		getUC:    getUC,
		statusUC: statusUC,
		listUC:   listUC,
		logger:   logger,
	}
}

// GetSubscription returns the full subscription record by its public ID.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	sid, err := utils.ParseSIDParam(c, "sid", id.PrefixSubscription, "subscription")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	dto, err := h.getUC.Execute(c.Request.Context(), sid)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription retrieved", dto)
}

// GetSubscriptionStatus returns the cached effective status for entitlement
// checks.
func (h *SubscriptionHandler) GetSubscriptionStatus(c *gin.Context) {
	sid, err := utils.ParseSIDParam(c, "sid", id.PrefixSubscription, "subscription")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	dto, err := h.statusUC.Execute(c.Request.Context(), sid)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription status retrieved", dto)
}

// GetClientSubscriptionStatus returns the effective status of a client's
// current subscription.
func (h *SubscriptionHandler) GetClientSubscriptionStatus(c *gin.Context) {
	clientID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid client ID")
		return
	}

	dto, err := h.statusUC.ExecuteByClientID(c.Request.Context(), uint(clientID))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription status retrieved", dto)
}

// ListSubscriptions returns a filtered page of subscriptions.
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	page, pageSize := utils.GetPageParams(c)

	query := usecases.ListSubscriptionsQuery{
		Page:     page,
		PageSize: pageSize,
		SortBy:   c.Query("sort_by"),
		SortDesc: c.Query("sort_order") == "desc",
	}

	if status := c.Query("status"); status != "" {
		query.Status = &status
	}
	if raw := c.Query("client_id"); raw != "" {
		clientID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid client_id")
			return
		}
		v := uint(clientID)
		query.ClientID = &v
	}
	if raw := c.Query("plan_id"); raw != "" {
		planID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "invalid plan_id")
			return
		}
		v := uint(planID)
		query.PlanID = &v
	}

	result, err := h.listUC.Execute(c.Request.Context(), query)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.ListSuccessResponse(c, result.Subscriptions, result.Total, result.Page, result.PageSize)
}

// GetStatusBreakdown returns subscription counts per lifecycle status.
func (h *SubscriptionHandler) GetStatusBreakdown(c *gin.Context) {
	breakdown, err := h.listUC.Breakdown(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "status breakdown retrieved", breakdown)
}
