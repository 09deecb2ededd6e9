package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidCode        ErrorCode = "INVALID_OR_EXPIRED_CODE"
	ErrCodeAccountDisabled    ErrorCode = "ACCOUNT_DISABLED"
	ErrCodeDuplicateAccount   ErrorCode = "DUPLICATE_ACCOUNT"
	ErrCodeDeliveryFailed     ErrorCode = "DELIVERY_FAILED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	// LockedUntil заполняется только для RATE_LIMITED.
	LockedUntil time.Time
	// Details содержит ошибки по полям для VALIDATION_ERROR.
	Details map[string]string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с общими значениями ниже.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// RetryAfter возвращает оставшееся время блокировки относительно now.
func (e *AppError) RetryAfter(now time.Time) time.Duration {
	if e.LockedUntil.IsZero() || !e.LockedUntil.After(now) {
		return 0
	}
	return e.LockedUntil.Sub(now)
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// RateLimited создаёт ошибку блокировки с моментом её окончания.
func RateLimited(message string, lockedUntil time.Time) *AppError {
	e := New(ErrCodeRateLimited, message)
	e.LockedUntil = lockedUntil
	return e
}

// Validation создаёт ошибку валидации с деталями по полям.
func Validation(details map[string]string) *AppError {
	e := New(ErrCodeValidation, "Validation failed")
	e.Details = details
	return e
}

// DuplicateAccount скрывает причину отказа за общим сообщением.
// Cause остаётся для логов.
func DuplicateAccount(cause error) *AppError {
	return Wrap(cause, ErrCodeDuplicateAccount, "Registration failed. Please try again.")
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized, ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeAccountDisabled:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInvalidCode, ErrCodeDuplicateAccount:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// As извлекает AppError из цепочки.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func hasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func IsRateLimited(err error) bool {
	return hasCode(err, ErrCodeRateLimited)
}

func IsInvalidCredentials(err error) bool {
	return hasCode(err, ErrCodeInvalidCredentials)
}

func IsInvalidCode(err error) bool {
	return hasCode(err, ErrCodeInvalidCode)
}

func IsAccountDisabled(err error) bool {
	return hasCode(err, ErrCodeAccountDisabled)
}

func IsDeliveryFailed(err error) bool {
	return hasCode(err, ErrCodeDeliveryFailed)
}

var (
	ErrUserNotFound       = New(ErrCodeNotFound, "User not found")
	ErrAlertNotFound      = New(ErrCodeNotFound, "Alert not found")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "Unauthorized")
	ErrForbidden          = New(ErrCodeForbidden, "Forbidden: Admin access required")
	ErrInvalidCredentials = New(ErrCodeInvalidCredentials, "Invalid email or password")
	ErrInvalidCode        = New(ErrCodeInvalidCode, "Invalid or expired verification code.")
	ErrAccountDisabled    = New(ErrCodeAccountDisabled, "Account is disabled. Please contact support.")
	ErrDeliveryFailed     = New(ErrCodeDeliveryFailed, "An error occurred. Please try again later.")
)
