package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alwalid54321/su-st-sub001/internal/http/handlers/common"
	"github.com/alwalid54321/su-st-sub001/internal/http/response"
	"github.com/alwalid54321/su-st-sub001/internal/service"
)

type verificationService interface {
	ResendVerification(ctx context.Context, email string) (service.ResendOutcome, error)
	VerifyEmail(ctx context.Context, email, otp string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
	RequestLoginCode(ctx context.Context, email string) error
	VerifyLoginCode(ctx context.Context, email, otp string) (*service.Session, error)
}

// Ответы на запрос кода одинаковы для любых адресов.
const (
	msgResendAccepted   = "If an account exists, a new code has been sent."
	msgAlreadyVerified  = "Account is already verified. Please login."
	msgEmailVerified    = "Email verified successfully!"
	msgResetRequested   = "If an account exists with this email, you will receive a password reset code shortly."
	msgPasswordReset    = "Password has been reset. Please login."
	msgLoginCodeRequest = "If an account exists, a login code has been sent."
)

// VerificationHandler обслуживает потоки с одноразовыми кодами.
type VerificationHandler struct {
	svc verificationService
}

func NewVerificationHandler(s verificationService) *VerificationHandler {
	return &VerificationHandler{svc: s}
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

// ResendVerification POST /api/auth/resend-verification
func (h *VerificationHandler) ResendVerification(c *gin.Context) {
	var req emailRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	outcome, err := h.svc.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome == service.ResendAlreadyVerified {
		response.Message(c, http.StatusBadRequest, msgAlreadyVerified)
		return
	}
	response.Message(c, http.StatusOK, msgResendAccepted)
}

// VerifyEmail POST /api/auth/verify-email
func (h *VerificationHandler) VerifyEmail(c *gin.Context) {
	var req codeRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.svc.VerifyEmail(c.Request.Context(), req.Email, req.OTP); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, msgEmailVerified)
}

// RequestPasswordReset POST /api/auth/password-reset/request
func (h *VerificationHandler) RequestPasswordReset(c *gin.Context) {
	var req emailRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, msgResetRequested)
}

// ResetPassword POST /api/auth/password-reset/confirm
func (h *VerificationHandler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, msgPasswordReset)
}

// RequestLoginCode POST /api/auth/login-code/request
func (h *VerificationHandler) RequestLoginCode(c *gin.Context) {
	var req emailRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.svc.RequestLoginCode(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, msgLoginCodeRequest)
}

// VerifyLoginCode POST /api/auth/login-code/verify
func (h *VerificationHandler) VerifyLoginCode(c *gin.Context) {
	var req codeRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.svc.VerifyLoginCode(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}
