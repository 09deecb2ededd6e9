package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alwalid54321/su-st-sub001/internal/http/handlers/common"
	"github.com/alwalid54321/su-st-sub001/internal/http/response"
	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/service"
)

type authService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.UserSummary, error)
	Authenticate(ctx context.Context, email, password string) (*service.Session, error)
}

// AuthHandler предоставляет HTTP слой для регистрации и логина.
type AuthHandler struct {
	auth authService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth authService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Username  string  `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Gotcha    string  `json:"_gotcha"`
}

// Register обрабатывает POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Honeypot:  req.Gotcha,
		IP:        c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{
		"message": "Account created successfully! Please check your email for verification code.",
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login обрабатывает POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, session)
}

// Session обрабатывает GET /api/auth/session.
func (h *AuthHandler) Session(c *gin.Context) {
	session, err := common.CurrentSession(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       session.User,
		"expires_at": session.ExpiresAt,
	})
}
