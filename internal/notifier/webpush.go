package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/models"
)

// ErrSubscriptionExpired - push сервис ответил 404 или 410, подписку нужно удалить.
var ErrSubscriptionExpired = errors.New("push subscription expired")

const defaultTTL = 60 * 60 * 24

// WebPush отправляет уведомления по протоколу Web Push с VAPID подписью.
// Без ключей уведомления пропускаются.
type WebPush struct {
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
}

// NewWebPush создаёт отправителя. subject вида "mailto:support@sudastock.com" или https URL.
func NewWebPush(publicKey, privateKey, subject string) *WebPush {
	return &WebPush{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: strings.TrimPrefix(subject, "mailto:"),
		client:     &http.Client{},
	}
}

// Enabled сообщает, заданы ли VAPID ключи.
func (w *WebPush) Enabled() bool {
	return w.publicKey != "" && w.privateKey != ""
}

// SendPushNotification шифрует payload для подписки и отправляет его push сервису.
func (w *WebPush) SendPushNotification(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if !w.Enabled() {
		logger.Log.WithField("endpoint", sub.Endpoint).Warn("notifier: VAPID keys not set, skipping push")
		return nil
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.subscriber,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             defaultTTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("notifier: send push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionExpired
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("notifier: push service responded %d", resp.StatusCode)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": sub.UserID,
		"status":  resp.StatusCode,
	}).Debug("notifier: push notification sent")
	return nil
}
