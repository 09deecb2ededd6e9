package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/notifier"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
	"github.com/alwalid54321/su-st-sub001/internal/repository"
)

// AlertRepository хранит ценовые алерты.
type AlertRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PriceAlert, error)
	Create(ctx context.Context, alert *models.PriceAlert) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	ListActive(ctx context.Context) ([]models.ActiveAlert, error)
	MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PushSubscriptionRepository хранит web push подписки.
type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error)
	Delete(ctx context.Context, userID uuid.UUID, endpoint string) error
}

// Notifier доставляет push уведомления.
type Notifier interface {
	SendPushNotification(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// AlertObserver получает событие срабатывания алерта (метрики).
type AlertObserver interface {
	AlertTriggered()
}

type nopAlertObserver struct{}

func (nopAlertObserver) AlertTriggered() {}

// TriggeredAlert - запись в отчёте проверки.
type TriggeredAlert struct {
	AlertID uuid.UUID `json:"alertId"`
	Status  string    `json:"status"`
}

// EvaluationResult - итог одного прогона проверки алертов.
type EvaluationResult struct {
	Processed int              `json:"processed"`
	Triggered []TriggeredAlert `json:"triggered"`
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// AlertService управляет алертами пользователя и рассылает уведомления о срабатывании.
type AlertService struct {
	alerts   AlertRepository
	subs     PushSubscriptionRepository
	mailer   Mailer
	notifier Notifier
	now      func() time.Time
	observer AlertObserver
}

// NewAlertService создаёт сервис алертов. observer может быть nil.
func NewAlertService(alerts AlertRepository, subs PushSubscriptionRepository, mailer Mailer, n Notifier, observer AlertObserver) *AlertService {
	if observer == nil {
		observer = nopAlertObserver{}
	}
	return &AlertService{
		alerts:   alerts,
		subs:     subs,
		mailer:   mailer,
		notifier: n,
		now:      time.Now,
		observer: observer,
	}
}

// ListAlerts возвращает алерты пользователя.
func (s *AlertService) ListAlerts(ctx context.Context, userID uuid.UUID) ([]models.PriceAlert, error) {
	alerts, err := s.alerts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to list alerts")
	}
	return alerts, nil
}

// CreateAlert создаёт алерт на позицию рынка.
func (s *AlertService) CreateAlert(ctx context.Context, userID uuid.UUID, marketDataID int64, targetPrice float64, condition models.AlertCondition) (*models.PriceAlert, error) {
	details := map[string]string{}
	if marketDataID <= 0 {
		details["marketDataId"] = "Market item is required"
	}
	if targetPrice <= 0 || math.IsInf(targetPrice, 0) || math.IsNaN(targetPrice) {
		details["targetPrice"] = "Target price must be a positive number"
	}
	condition = models.AlertCondition(strings.ToUpper(string(condition)))
	if condition != models.ConditionAbove && condition != models.ConditionBelow {
		details["condition"] = "Condition must be ABOVE or BELOW"
	}
	if len(details) > 0 {
		return nil, apperror.Validation(details)
	}

	alert := &models.PriceAlert{
		UserID:       userID,
		MarketDataID: marketDataID,
		TargetPrice:  targetPrice,
		Condition:    condition,
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		if errors.Is(err, repository.ErrMarketNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "Market item not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to create alert")
	}
	return alert, nil
}

// DeleteAlert удаляет алерт, если он принадлежит пользователю.
func (s *AlertService) DeleteAlert(ctx context.Context, userID, alertID uuid.UUID) error {
	if err := s.alerts.Delete(ctx, alertID, userID); err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return apperror.ErrAlertNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to delete alert")
	}
	return nil
}

// SaveSubscription сохраняет push подписку браузера.
func (s *AlertService) SaveSubscription(ctx context.Context, userID uuid.UUID, endpoint, auth, p256dh string) (*models.PushSubscription, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || auth == "" || p256dh == "" {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "Invalid subscription")
	}

	sub := &models.PushSubscription{UserID: userID, Endpoint: endpoint, Auth: auth, P256dh: p256dh}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to save subscription")
	}
	return sub, nil
}

// DeleteSubscription удаляет push подписку пользователя.
func (s *AlertService) DeleteSubscription(ctx context.Context, userID uuid.UUID, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return apperror.New(apperror.ErrCodeBadRequest, "Endpoint is required")
	}
	if err := s.subs.Delete(ctx, userID, endpoint); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to delete subscription")
	}
	return nil
}

// Evaluate проверяет все активные алерты. Сработавший алерт рассылается по
// email и push без повторов и деактивируется.
func (s *AlertService) Evaluate(ctx context.Context) (*EvaluationResult, error) {
	active, err := s.alerts.ListActive(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load alerts")
	}

	result := &EvaluationResult{Processed: len(active), Triggered: []TriggeredAlert{}}

	for i := range active {
		alert := &active[i]
		if !alert.Met(alert.MarketValue) {
			continue
		}

		s.notify(ctx, alert)

		if err := s.alerts.MarkTriggered(ctx, alert.ID, s.now()); err != nil {
			logger.Log.WithError(err).WithField("alert_id", alert.ID).Error("alerts: failed to deactivate alert")
			continue
		}

		s.observer.AlertTriggered()
		result.Triggered = append(result.Triggered, TriggeredAlert{AlertID: alert.ID, Status: "Triggered"})
	}

	logger.Log.WithFields(logrus.Fields{
		"processed": result.Processed,
		"triggered": len(result.Triggered),
	}).Info("alerts: evaluation finished")

	return result, nil
}

func (s *AlertService) notify(ctx context.Context, alert *models.ActiveAlert) {
	message := fmt.Sprintf("Price Alert: %s is now %s %s SDG. Current Price: %s SDG.",
		alert.MarketName,
		strings.ToLower(string(alert.Condition)),
		formatPrice(alert.TargetPrice),
		formatPrice(alert.MarketValue),
	)
	fields := logrus.Fields{"alert_id": alert.ID, "user_id": alert.UserID}

	if alert.EmailNotifications {
		subject := "Price Alert: " + alert.MarketName
		if err := s.mailer.SendEmailNotification(ctx, alert.UserEmail, subject, message); err != nil {
			logger.Log.WithFields(fields).WithError(err).Warn("alerts: email notification failed")
		}
	}

	subs, err := s.subs.ListByUser(ctx, alert.UserID)
	if err != nil {
		logger.Log.WithFields(fields).WithError(err).Warn("alerts: failed to load push subscriptions")
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{Title: "SudaStock Alert", Body: message})
	if err != nil {
		logger.Log.WithFields(fields).WithError(err).Error("alerts: failed to encode push payload")
		return
	}

	for _, sub := range subs {
		err := s.notifier.SendPushNotification(ctx, sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, notifier.ErrSubscriptionExpired):
			if delErr := s.subs.Delete(ctx, sub.UserID, sub.Endpoint); delErr != nil {
				logger.Log.WithFields(fields).WithError(delErr).Warn("alerts: failed to drop expired subscription")
			}
		default:
			logger.Log.WithFields(fields).WithError(err).Warn("alerts: push notification failed")
		}
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
