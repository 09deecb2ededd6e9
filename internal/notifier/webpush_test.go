package notifier

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/models"
)

func testSubscription(t *testing.T, endpoint string) models.PushSubscription {
	t.Helper()
	// Публичный ключ VAPID - валидная точка P-256, подходит как ключ браузера.
	_, browserKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	return models.PushSubscription{
		UserID:   uuid.New(),
		Endpoint: endpoint,
		Auth:     base64.RawURLEncoding.EncodeToString(secret),
		P256dh:   browserKey,
	}
}

func newTestPush(t *testing.T) *WebPush {
	t.Helper()
	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return NewWebPush(public, private, "mailto:support@sudastock.com")
}

func TestWebPush_Delivers(t *testing.T) {
	logger.SetOutput(io.Discard)

	var gotAuth, gotTTL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTTL = r.Header.Get("TTL")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := newTestPush(t)
	err := p.SendPushNotification(context.Background(), testSubscription(t, srv.URL+"/push/1"), []byte(`{"title":"t"}`))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotAuth, "vapid "), gotAuth)
	assert.Equal(t, "86400", gotTTL)
}

func TestWebPush_ExpiredSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	p := newTestPush(t)
	err := p.SendPushNotification(context.Background(), testSubscription(t, srv.URL), []byte("x"))
	assert.ErrorIs(t, err, ErrSubscriptionExpired)
}

func TestWebPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestPush(t)
	err := p.SendPushNotification(context.Background(), testSubscription(t, srv.URL), []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSubscriptionExpired)
}

func TestWebPush_DisabledSkips(t *testing.T) {
	logger.SetOutput(io.Discard)
	p := NewWebPush("", "", "")
	assert.False(t, p.Enabled())
	assert.NoError(t, p.SendPushNotification(context.Background(), models.PushSubscription{Endpoint: "https://x"}, nil))
}
