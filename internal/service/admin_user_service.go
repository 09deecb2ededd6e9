package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
	"github.com/alwalid54321/su-st-sub001/internal/ratelimit"
	"github.com/alwalid54321/su-st-sub001/internal/repository"
	"github.com/alwalid54321/su-st-sub001/internal/validation"
)

// AdminUserRepository - операции над аккаунтами из админки.
type AdminUserRepository interface {
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// AdminUserService управляет аккаунтами и блокировками от имени администратора.
type AdminUserService struct {
	users   AdminUserRepository
	tracker *ratelimit.Tracker
}

func NewAdminUserService(users AdminUserRepository, tracker *ratelimit.Tracker) *AdminUserService {
	return &AdminUserService{users: users, tracker: tracker}
}

// List возвращает всех пользователей.
func (s *AdminUserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to list users")
	}
	return users, nil
}

// Update применяет разрешённые поля. Администратор не может снять права или
// отключить аккаунт сам себе.
func (s *AdminUserService) Update(ctx context.Context, actorID, targetID uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	if upd.Plan != nil && *upd.Plan != models.PlanFree && *upd.Plan != models.PlanPlus {
		return nil, apperror.Validation(map[string]string{"plan": "Plan must be free or plus"})
	}
	upd.FirstName = clipName(upd.FirstName)
	upd.LastName = clipName(upd.LastName)

	if upd.Empty() {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "No valid fields to update")
	}

	if actorID == targetID {
		if upd.IsStaff != nil && !*upd.IsStaff {
			return nil, apperror.New(apperror.ErrCodeForbidden, "Cannot remove your own admin privileges")
		}
		if upd.IsActive != nil && !*upd.IsActive {
			return nil, apperror.New(apperror.ErrCodeForbidden, "Cannot disable your own account")
		}
	}

	user, err := s.users.Update(ctx, targetID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to update user")
	}

	logger.Log.WithFields(logrus.Fields{
		"admin_id": actorID,
		"user_id":  targetID,
	}).Info("admin: user updated")
	return user, nil
}

// Disable отключает аккаунт. Строка пользователя не удаляется.
func (s *AdminUserService) Disable(ctx context.Context, actorID, targetID uuid.UUID) error {
	if actorID == targetID {
		return apperror.New(apperror.ErrCodeForbidden, "Cannot disable your own account")
	}

	if err := s.users.SetActive(ctx, targetID, false); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrUserNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to disable user")
	}

	logger.Log.WithFields(logrus.Fields{
		"admin_id": actorID,
		"user_id":  targetID,
	}).Info("admin: user disabled")
	return nil
}

// ClearAttempts снимает блокировку с идентификатора трекера, например "resend_a@x.com".
func (s *AdminUserService) ClearAttempts(ctx context.Context, actorID uuid.UUID, identifier string) error {
	identifier = ratelimit.Normalize(identifier)
	if identifier == "" {
		return apperror.New(apperror.ErrCodeBadRequest, "Identifier is required")
	}
	if err := s.tracker.Clear(ctx, identifier); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to clear attempts")
	}

	logger.Log.WithFields(logrus.Fields{
		"admin_id":   actorID,
		"identifier": identifier,
	}).Info("admin: attempts cleared")
	return nil
}

// clipName обрезает пробелы и ограничивает длину, как в форме профиля.
func clipName(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if utf8.RuneCountInString(t) > validation.MaxNameLength {
		t = string([]rune(t)[:validation.MaxNameLength])
	}
	return &t
}
