package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
	"github.com/alwalid54321/su-st-sub001/internal/ratelimit"
	"github.com/alwalid54321/su-st-sub001/internal/repository"
	"github.com/alwalid54321/su-st-sub001/internal/validation"
)

// errHoneypot - внутренняя причина отказа при заполненном скрытом поле.
var errHoneypot = errors.New("honeypot field populated")

// AuthService инкапсулирует бизнес-логику регистрации и входа по паролю.
type AuthService struct {
	users        UserRepository
	verification *VerificationService
	tracker      *ratelimit.Tracker
	policies     ratelimit.Policies
	tokens       *TokenManager
	hasher       *PasswordHasher
}

// RegisterInput содержит данные формы регистрации.
type RegisterInput struct {
	Email     string
	Password  string
	Username  string
	FirstName *string
	LastName  *string
	// Honeypot - скрытое поле формы, люди его не заполняют.
	Honeypot string
	IP       string
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(
	users UserRepository,
	verification *VerificationService,
	tracker *ratelimit.Tracker,
	policies ratelimit.Policies,
	tokens *TokenManager,
	hasher *PasswordHasher,
) *AuthService {
	return &AuthService{
		users:        users,
		verification: verification,
		tracker:      tracker,
		policies:     policies,
		tokens:       tokens,
		hasher:       hasher,
	}
}

// Register создаёт неподтверждённый аккаунт и отправляет код подтверждения.
// Конфликт email или username и срабатывание honeypot дают одинаковый общий отказ.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.UserSummary, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = trimmedOrNil(in.FirstName)
	in.LastName = trimmedOrNil(in.LastName)

	errs := validation.ValidateRegistration(validation.Registration{
		Email:     in.Email,
		Password:  in.Password,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if !errs.Empty() {
		return nil, apperror.Validation(errs)
	}

	if in.Honeypot != "" {
		logger.Log.WithFields(logrus.Fields{
			"ip":    in.IP,
			"email": logger.MaskEmail(in.Email),
		}).Warn("auth: bot registration attempt detected")
		return nil, apperror.DuplicateAccount(errHoneypot)
	}

	// Попытка засчитывается только при конфликте, успешная регистрация её возвращает.
	attempt, err := s.tracker.Begin(ctx, ratelimit.RegisterKey(in.IP), s.policies.Register)
	if err != nil {
		return nil, attemptError(err)
	}
	defer attempt.Cancel(ctx)

	exists, err := s.users.ExistsByEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to check account")
	}
	if exists {
		return nil, duplicate(attempt, in, repository.ErrUserExists)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to hash password")
	}

	user := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		Plan:         models.PlanFree,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, duplicate(attempt, in, err)
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to create account")
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   logger.MaskEmail(user.Email),
	}).Info("auth: new user registered")

	summary := user.Summary()
	if _, err := s.verification.Issue(ctx, user.Email, models.PurposeVerification, &user.ID); err != nil {
		return &summary, err
	}

	return &summary, nil
}

func duplicate(attempt *ratelimit.Attempt, in RegisterInput, cause error) error {
	attempt.Fail()
	logger.Log.WithFields(logrus.Fields{
		"ip":    in.IP,
		"email": logger.MaskEmail(in.Email),
	}).Info("auth: registration rejected, account exists")
	return apperror.DuplicateAccount(cause)
}

// Authenticate проверяет email и пароль и открывает сессию.
// Неизвестный email и неверный пароль неразличимы ни по ответу, ни по счётчику.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.Validation(map[string]string{"credentials": "Email and password are required"})
	}

	attempt, err := s.tracker.Begin(ctx, ratelimit.LoginKey(email), s.policies.Login)
	if err != nil {
		return nil, attemptError(err)
	}
	defer attempt.Cancel(ctx)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logger.Log.WithField("email", logger.MaskEmail(email)).Warn("auth: login for unknown email")
			attempt.Fail()
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load account")
	}

	ok, err := s.hasher.Matches(user.PasswordHash, password)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to check password")
	}
	if !ok {
		logger.Log.WithField("email", logger.MaskEmail(email)).Warn("auth: invalid password")
		attempt.Fail()
		return nil, apperror.ErrInvalidCredentials
	}

	if !user.IsActive {
		logger.Log.WithField("email", logger.MaskEmail(email)).Warn("auth: login to disabled account")
		return nil, apperror.ErrAccountDisabled
	}

	if err := settleSucceeded(ctx, attempt); err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.tracker.Now()); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("auth: failed to update last_login_at")
	}

	session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to issue session")
	}

	logger.Log.WithField("user_id", user.ID).Info("auth: successful login")
	return session, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
