package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alwalid54321/su-st-sub001/internal/http/response"
	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
	"github.com/alwalid54321/su-st-sub001/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextSessionKey = "session"
	ContextUserIDKey  = "userID"
)

// AuthMiddleware проверяет JWT сессии и кладёт её в контекст.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			response.Abort(c, apperror.ErrUnauthorized)
			return
		}

		session, err := tokens.Parse(raw)
		if err != nil {
			response.Abort(c, apperror.ErrUnauthorized)
			return
		}

		c.Set(ContextSessionKey, session)
		c.Set(ContextUserIDKey, session.User.ID)
		c.Next()
	}
}

// RequireAdmin пропускает только staff и superuser. Ставится после AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get(ContextSessionKey)
		session, ok := raw.(*service.Session)
		if !exists || !ok {
			response.Abort(c, apperror.ErrUnauthorized)
			return
		}
		if !session.User.IsAdmin() {
			logger.Log.WithField("user_id", session.User.ID).Warn("http: admin access denied")
			response.Abort(c, apperror.ErrForbidden)
			return
		}
		c.Next()
	}
}

// CronAuth проверяет общий секрет планировщика. Пустой секрет закрывает доступ.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if secret == "" || !ok || subtle.ConstantTimeCompare([]byte(raw), []byte(secret)) != 1 {
			response.Abort(c, apperror.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}
