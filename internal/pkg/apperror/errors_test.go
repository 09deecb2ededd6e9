package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppError_StatusMapping(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeRateLimited:        http.StatusTooManyRequests,
		ErrCodeInvalidCredentials: http.StatusUnauthorized,
		ErrCodeInvalidCode:        http.StatusBadRequest,
		ErrCodeAccountDisabled:    http.StatusForbidden,
		ErrCodeDuplicateAccount:   http.StatusBadRequest,
		ErrCodeValidation:         http.StatusBadRequest,
		ErrCodeDeliveryFailed:     http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, string(code))
	}
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("verification: %w", Wrap(errors.New("boom"), ErrCodeInvalidCode, "other text"))

	assert.True(t, errors.Is(wrapped, ErrInvalidCode))
	assert.True(t, IsInvalidCode(wrapped))
	assert.False(t, IsRateLimited(wrapped))
}

func TestAppError_RetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	err := RateLimited("slow down", now.Add(90*time.Second))

	assert.Equal(t, 90*time.Second, err.RetryAfter(now))
	assert.Equal(t, time.Duration(0), err.RetryAfter(now.Add(time.Hour)))
}

func TestDuplicateAccount_KeepsCauseForLogs(t *testing.T) {
	cause := errors.New("username taken")
	err := DuplicateAccount(cause)

	assert.Equal(t, "Registration failed. Please try again.", err.Message)
	assert.ErrorIs(t, err, cause)
}
