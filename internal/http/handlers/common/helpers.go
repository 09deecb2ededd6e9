package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alwalid54321/su-st-sub001/internal/http/middleware"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
	"github.com/alwalid54321/su-st-sub001/internal/service"
)

// ErrInvalidBody возвращается, когда тело запроса не разбирается как JSON.
var ErrInvalidBody = apperror.New(apperror.ErrCodeBadRequest, "Invalid request body")

// CurrentSession извлекает сессию, положенную AuthMiddleware.
func CurrentSession(c *gin.Context) (*service.Session, error) {
	raw, exists := c.Get(middleware.ContextSessionKey)
	if !exists {
		return nil, apperror.ErrUnauthorized
	}
	session, ok := raw.(*service.Session)
	if !ok || session == nil {
		return nil, apperror.ErrUnauthorized
	}
	return session, nil
}

// CurrentUserID извлекает ID пользователя из контекста.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	return userID, nil
}

// ParseUUIDParam разбирает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.Validation(map[string]string{paramName: "Must be a valid UUID"})
	}
	return parsed, nil
}

// BindJSON разбирает тело запроса. Ошибки разбора не раскрывают внутренности декодера.
func BindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, ErrInvalidBody.Message)
	}
	return nil
}
