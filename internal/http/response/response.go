package response

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
)

// ErrorBody - единый формат ошибки API.
type ErrorBody struct {
	Error      string            `json:"error"`
	Code       string            `json:"code"`
	Details    map[string]string `json:"details,omitempty"`
	RetryAfter int               `json:"retry_after,omitempty"`
}

// MessageBody - ответ без данных.
type MessageBody struct {
	Message string `json:"message"`
}

// Now - источник времени для retry_after, подменяется в тестах.
var Now = time.Now

func Message(c *gin.Context, status int, message string) {
	c.JSON(status, MessageBody{Message: message})
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error переводит ошибку в HTTP ответ. Всё, что не AppError, считается
// внутренней ошибкой, и клиент видит только общее сообщение.
func Error(c *gin.Context, err error) {
	status, body := build(c, err)
	c.JSON(status, body)
}

// Abort пишет ошибку и прерывает цепочку обработчиков.
func Abort(c *gin.Context, err error) {
	status, body := build(c, err)
	c.AbortWithStatusJSON(status, body)
}

func build(c *gin.Context, err error) (int, ErrorBody) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Wrap(err, apperror.ErrCodeInternal, "Internal server error")
	}

	body := ErrorBody{
		Error:   appErr.Message,
		Code:    string(appErr.Code),
		Details: appErr.Details,
	}

	if appErr.Code == apperror.ErrCodeRateLimited {
		if wait := appErr.RetryAfter(Now()); wait > 0 {
			seconds := int(math.Ceil(wait.Seconds()))
			body.RetryAfter = seconds
			c.Header("Retry-After", strconv.Itoa(seconds))
		}
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Log.WithFields(logrus.Fields{
			"code":   appErr.Code,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"error":  err.Error(),
		}).Error("http: request failed")
		// Внутренние детали клиенту не отдаём.
		if appErr.Code == apperror.ErrCodeDatabaseError || appErr.Code == apperror.ErrCodeInternal {
			body.Error = "Internal server error"
		}
	}

	_ = c.Error(err)
	return appErr.HTTPStatus, body
}
