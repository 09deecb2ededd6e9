package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alwalid54321/su-st-sub001/internal/http/handlers/common"
	"github.com/alwalid54321/su-st-sub001/internal/http/response"
	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
	"github.com/alwalid54321/su-st-sub001/internal/service"
)

type alertService interface {
	ListAlerts(ctx context.Context, userID uuid.UUID) ([]models.PriceAlert, error)
	CreateAlert(ctx context.Context, userID uuid.UUID, marketDataID int64, targetPrice float64, condition models.AlertCondition) (*models.PriceAlert, error)
	DeleteAlert(ctx context.Context, userID, alertID uuid.UUID) error
	SaveSubscription(ctx context.Context, userID uuid.UUID, endpoint, auth, p256dh string) (*models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error
	Evaluate(ctx context.Context) (*service.EvaluationResult, error)
}

// AlertHandler обслуживает ценовые алерты, push подписки и cron проверку.
type AlertHandler struct {
	alerts alertService
}

func NewAlertHandler(alerts alertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// List GET /api/user/alerts
func (h *AlertHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	alerts, err := h.alerts.ListAlerts(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, alerts)
}

type createAlertRequest struct {
	MarketDataID int64   `json:"marketDataId"`
	TargetPrice  float64 `json:"targetPrice"`
	Condition    string  `json:"condition"`
}

// Create POST /api/user/alerts
func (h *AlertHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req createAlertRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	alert, err := h.alerts.CreateAlert(c.Request.Context(), userID, req.MarketDataID, req.TargetPrice, models.AlertCondition(req.Condition))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, alert)
}

// Delete DELETE /api/user/alerts?id=<uuid>
func (h *AlertHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	raw := c.Query("id")
	if raw == "" {
		response.Error(c, apperror.New(apperror.ErrCodeBadRequest, "Alert ID required"))
		return
	}
	alertID, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.Validation(map[string]string{"id": "Must be a valid UUID"}))
		return
	}

	if err := h.alerts.DeleteAlert(c.Request.Context(), userID, alertID); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type subscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		Auth   string `json:"auth"`
		P256dh string `json:"p256dh"`
	} `json:"keys"`
}

// SaveSubscription POST /api/user/push-subscription
func (h *AlertHandler) SaveSubscription(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req subscriptionRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	sub, err := h.alerts.SaveSubscription(c.Request.Context(), userID, req.Endpoint, req.Keys.Auth, req.Keys.P256dh)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": sub.ID})
}

// DeleteSubscription DELETE /api/user/push-subscription
func (h *AlertHandler) DeleteSubscription(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.alerts.DeleteSubscription(c.Request.Context(), userID, req.Endpoint); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckAlerts GET /api/cron/check-alerts
func (h *AlertHandler) CheckAlerts(c *gin.Context) {
	result, err := h.alerts.Evaluate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": result.Processed,
		"triggered": result.Triggered,
	})
}
