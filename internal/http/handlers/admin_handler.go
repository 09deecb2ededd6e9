package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alwalid54321/su-st-sub001/internal/http/handlers/common"
	"github.com/alwalid54321/su-st-sub001/internal/http/response"
	"github.com/alwalid54321/su-st-sub001/internal/models"
)

type adminUserService interface {
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, actorID, targetID uuid.UUID, upd models.UserUpdate) (*models.User, error)
	Disable(ctx context.Context, actorID, targetID uuid.UUID) error
	ClearAttempts(ctx context.Context, actorID uuid.UUID, identifier string) error
}

// AdminHandler - управление пользователями и блокировками.
type AdminHandler struct {
	users adminUserService
}

func NewAdminHandler(users adminUserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// ListUsers GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

// Неизвестные поля игнорируются, в UserUpdate попадает только этот список.
type updateUserRequest struct {
	Plan      *string `json:"plan"`
	IsActive  *bool   `json:"isActive"`
	IsStaff   *bool   `json:"isStaff"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// UpdateUser PUT /api/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	actorID, targetID, ok := h.actorAndTarget(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.users.Update(c.Request.Context(), actorID, targetID, models.UserUpdate{
		Plan:      req.Plan,
		IsActive:  req.IsActive,
		IsStaff:   req.IsStaff,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// DisableUser DELETE /api/admin/users/:id
func (h *AdminHandler) DisableUser(c *gin.Context) {
	actorID, targetID, ok := h.actorAndTarget(c)
	if !ok {
		return
	}

	if err := h.users.Disable(c.Request.Context(), actorID, targetID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "User disabled")
}

// ClearAttempts DELETE /api/admin/attempts/:identifier
func (h *AdminHandler) ClearAttempts(c *gin.Context) {
	actorID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.users.ClearAttempts(c.Request.Context(), actorID, c.Param("identifier")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Attempts cleared")
}

func (h *AdminHandler) actorAndTarget(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	actorID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	targetID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return actorID, targetID, true
}
