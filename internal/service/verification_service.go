package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
	"github.com/alwalid54321/su-st-sub001/internal/ratelimit"
	"github.com/alwalid54321/su-st-sub001/internal/repository"
	"github.com/alwalid54321/su-st-sub001/internal/validation"
)

// UserRepository описывает операции над аккаунтами, нужные auth и verification.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// CodeRepository хранит одноразовые коды.
type CodeRepository interface {
	Create(ctx context.Context, code *models.VerificationCode) error
	FindLive(ctx context.Context, email string, purpose models.CodePurpose, otp string, now time.Time) (*models.VerificationCode, error)
	Consume(ctx context.Context, id uuid.UUID) (bool, error)
	InvalidateActive(ctx context.Context, email string, purpose models.CodePurpose) (int64, error)
}

// Mailer доставляет письма. Сервисы решают только, что и когда отправить.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, otp string) error
	SendPasswordResetEmail(ctx context.Context, email, otp string) error
	SendLoginCodeEmail(ctx context.Context, email, otp string) error
	SendEmailNotification(ctx context.Context, email, subject, body string) error
}

// CodeObserver получает события выдачи и погашения кодов (метрики).
type CodeObserver interface {
	CodeIssued(purpose string)
	CodeRedeemed(purpose string)
}

type nopCodeObserver struct{}

func (nopCodeObserver) CodeIssued(string)   {}
func (nopCodeObserver) CodeRedeemed(string) {}

// ResendOutcome - результат повторной отправки кода.
type ResendOutcome int

const (
	// ResendAccepted возвращается и при отправке кода, и при неизвестном email.
	ResendAccepted ResendOutcome = iota
	ResendAlreadyVerified
)

// DefaultCodeTTL - время жизни кода по умолчанию.
const DefaultCodeTTL = 15 * time.Minute

// GenerateCode возвращает равномерно распределённый шестизначный код из crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// VerificationService выдаёт и гасит одноразовые коды и проводит потоки
// подтверждения email, сброса пароля и входа по коду через трекер попыток.
type VerificationService struct {
	users    UserRepository
	codes    CodeRepository
	mailer   Mailer
	tracker  *ratelimit.Tracker
	policies ratelimit.Policies
	tokens   *TokenManager
	hasher   *PasswordHasher

	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
	observer CodeObserver
}

// VerificationOption настраивает VerificationService.
type VerificationOption func(*VerificationService)

// WithCodeTTL задаёт время жизни кода.
func WithCodeTTL(ttl time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithServiceClock подменяет источник времени.
func WithServiceClock(now func() time.Time) VerificationOption {
	return func(s *VerificationService) { s.now = now }
}

// WithCodeGenerator подменяет генератор кодов.
func WithCodeGenerator(gen func() (string, error)) VerificationOption {
	return func(s *VerificationService) { s.generate = gen }
}

// WithCodeObserver подключает метрики кодов.
func WithCodeObserver(o CodeObserver) VerificationOption {
	return func(s *VerificationService) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewVerificationService создаёт координатор кодов. Часы по умолчанию берутся у трекера.
func NewVerificationService(
	users UserRepository,
	codes CodeRepository,
	mailer Mailer,
	tracker *ratelimit.Tracker,
	policies ratelimit.Policies,
	tokens *TokenManager,
	hasher *PasswordHasher,
	opts ...VerificationOption,
) *VerificationService {
	s := &VerificationService{
		users:    users,
		codes:    codes,
		mailer:   mailer,
		tracker:  tracker,
		policies: policies,
		tokens:   tokens,
		hasher:   hasher,
		ttl:      DefaultCodeTTL,
		now:      tracker.Now,
		generate: GenerateCode,
		observer: nopCodeObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue выдаёт новый код для пары (email, purpose) и отправляет его.
// Прежние живые коды этой пары гасятся. Ошибка доставки не отменяет выданный код.
func (s *VerificationService) Issue(ctx context.Context, email string, purpose models.CodePurpose, userID *uuid.UUID) (*models.VerificationCode, error) {
	if !purpose.Valid() {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "unknown code purpose")
	}

	otp, err := s.generate()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to generate code")
	}

	code := &models.VerificationCode{
		Email:     validation.NormalizeEmail(email),
		Code:      otp,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.ttl),
		UserID:    userID,
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to store code")
	}
	s.observer.CodeIssued(string(purpose))

	if err := s.deliver(ctx, code); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"email":   logger.MaskEmail(code.Email),
			"purpose": purpose,
			"error":   err.Error(),
		}).Error("verification: code delivery failed")
		return code, apperror.Wrap(err, apperror.ErrCodeDeliveryFailed, apperror.ErrDeliveryFailed.Message)
	}

	return code, nil
}

func (s *VerificationService) deliver(ctx context.Context, code *models.VerificationCode) error {
	switch code.Purpose {
	case models.PurposeVerification:
		return s.mailer.SendVerificationEmail(ctx, code.Email, code.Code)
	case models.PurposePasswordReset:
		return s.mailer.SendPasswordResetEmail(ctx, code.Email, code.Code)
	case models.PurposeLogin:
		return s.mailer.SendLoginCodeEmail(ctx, code.Email, code.Code)
	default:
		subject := "Your SudaStock security code"
		body := fmt.Sprintf("Your security code is %s. It expires in %d minutes.", code.Code, int(s.ttl.Minutes()))
		return s.mailer.SendEmailNotification(ctx, code.Email, subject, body)
	}
}

// Redeem гасит живой код. Неверный, истёкший и уже использованный код
// дают одну и ту же ошибку. Трекер здесь не трогается, это делает вызывающий.
func (s *VerificationService) Redeem(ctx context.Context, email string, purpose models.CodePurpose, otp string) (*models.VerificationCode, error) {
	email = validation.NormalizeEmail(email)

	code, err := s.codes.FindLive(ctx, email, purpose, strings.TrimSpace(otp), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, apperror.ErrInvalidCode
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to look up code")
	}

	consumed, err := s.codes.Consume(ctx, code.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to consume code")
	}
	if !consumed {
		return nil, apperror.ErrInvalidCode
	}
	code.IsUsed = true
	s.observer.CodeRedeemed(string(purpose))

	if purpose == models.PurposeVerification && code.UserID != nil {
		if err := s.users.MarkEmailVerified(ctx, *code.UserID); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to verify account")
		}
	}

	return code, nil
}

// ResendVerification отправляет новый код подтверждения. Каждый запрос
// засчитывается в лимит, независимо от того, существует ли аккаунт.
func (s *VerificationService) ResendVerification(ctx context.Context, email string) (ResendOutcome, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return ResendAccepted, apperror.Validation(map[string]string{"email": err.Error()})
	}
	email = validation.NormalizeEmail(email)

	attempt, err := s.tracker.Begin(ctx, ratelimit.ResendKey(email), s.policies.Resend)
	if err != nil {
		return ResendAccepted, attemptError(err)
	}
	attempt.Fail()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ResendAccepted, nil
		}
		return ResendAccepted, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load account")
	}

	if user.EmailVerified {
		return ResendAlreadyVerified, nil
	}

	if _, err := s.Issue(ctx, email, models.PurposeVerification, &user.ID); err != nil {
		return ResendAccepted, err
	}
	return ResendAccepted, nil
}

// VerifyEmail гасит код подтверждения и отмечает email аккаунта подтверждённым.
func (s *VerificationService) VerifyEmail(ctx context.Context, email, otp string) error {
	if err := validateEmailAndCode(email, otp); err != nil {
		return err
	}

	attempt, err := s.tracker.Begin(ctx, ratelimit.VerifyKey(email), s.policies.Verify)
	if err != nil {
		return attemptError(err)
	}

	if _, err := s.Redeem(ctx, email, models.PurposeVerification, otp); err != nil {
		return settleFailed(ctx, attempt, err)
	}

	return settleSucceeded(ctx, attempt)
}

// RequestPasswordReset выдаёт код сброса пароля. Ответ одинаков для любых адресов,
// поэтому ошибка доставки только логируется.
func (s *VerificationService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.requestCode(ctx, email, models.PurposePasswordReset,
		ratelimit.PasswordResetKey(email), s.policies.PasswordReset)
}

// ResetPassword меняет пароль по коду сброса и снимает блокировку входа.
func (s *VerificationService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	errs := validation.Errors{}
	errs.Add("email", validation.ValidateEmail(email))
	errs.Add("otp", validation.ValidateOTP(otp))
	errs.Add("password", validation.ValidatePassword(newPassword))
	if !errs.Empty() {
		return apperror.Validation(errs)
	}
	email = validation.NormalizeEmail(email)

	attempt, err := s.tracker.Begin(ctx, ratelimit.PasswordResetKey(email), s.policies.PasswordReset)
	if err != nil {
		return attemptError(err)
	}

	code, err := s.Redeem(ctx, email, models.PurposePasswordReset, otp)
	if err != nil {
		return settleFailed(ctx, attempt, err)
	}
	if err := settleSucceeded(ctx, attempt); err != nil {
		return err
	}

	user, err := s.codeOwner(ctx, code)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to update password")
	}

	// После смены пароля старые коды входа не должны работать.
	if _, err := s.codes.InvalidateActive(ctx, email, models.PurposeLogin); err != nil {
		logger.Log.WithError(err).WithField("email", logger.MaskEmail(email)).Warn("verification: failed to invalidate login codes")
	}

	logger.Log.WithFields(logrus.Fields{"user_id": user.ID}).Info("verification: password reset")

	return s.clear(ctx, ratelimit.LoginKey(email))
}

// RequestLoginCode выдаёт код для входа без пароля.
func (s *VerificationService) RequestLoginCode(ctx context.Context, email string) error {
	return s.requestCode(ctx, email, models.PurposeLogin,
		ratelimit.LoginCodeKey(email), s.policies.LoginCode)
}

// VerifyLoginCode гасит код входа и открывает сессию.
func (s *VerificationService) VerifyLoginCode(ctx context.Context, email, otp string) (*Session, error) {
	if err := validateEmailAndCode(email, otp); err != nil {
		return nil, err
	}
	email = validation.NormalizeEmail(email)

	attempt, err := s.tracker.Begin(ctx, ratelimit.LoginCodeKey(email), s.policies.LoginCode)
	if err != nil {
		return nil, attemptError(err)
	}

	code, err := s.Redeem(ctx, email, models.PurposeLogin, otp)
	if err != nil {
		return nil, settleFailed(ctx, attempt, err)
	}
	if err := settleSucceeded(ctx, attempt); err != nil {
		return nil, err
	}

	user, err := s.codeOwner(ctx, code)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		logger.Log.WithField("email", logger.MaskEmail(email)).Warn("verification: login code for disabled account")
		return nil, apperror.ErrAccountDisabled
	}

	if err := s.clear(ctx, ratelimit.LoginKey(email)); err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Warn("verification: failed to update last_login_at")
	}

	session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "failed to issue session")
	}
	return session, nil
}

// requestCode - общий путь запроса кода по email без раскрытия существования аккаунта.
func (s *VerificationService) requestCode(ctx context.Context, email string, purpose models.CodePurpose, key string, policy ratelimit.Policy) error {
	if err := validation.ValidateEmail(email); err != nil {
		return apperror.Validation(map[string]string{"email": err.Error()})
	}
	email = validation.NormalizeEmail(email)

	attempt, err := s.tracker.Begin(ctx, key, policy)
	if err != nil {
		return attemptError(err)
	}
	attempt.Fail()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load account")
	}
	if !user.IsActive {
		return nil
	}

	if _, err := s.Issue(ctx, email, purpose, &user.ID); err != nil {
		if apperror.IsDeliveryFailed(err) {
			return nil
		}
		return err
	}
	return nil
}

// codeOwner находит аккаунт кода: по ссылке, если она есть, иначе по email.
func (s *VerificationService) codeOwner(ctx context.Context, code *models.VerificationCode) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if code.UserID != nil {
		user, err = s.users.GetByID(ctx, *code.UserID)
	} else {
		user, err = s.users.GetByEmail(ctx, code.Email)
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCode
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load account")
	}
	return user, nil
}

// settleFailed оставляет попытку засчитанной, если err означает неверный код.
// Остальные ошибки попытку возвращают.
func settleFailed(ctx context.Context, attempt *ratelimit.Attempt, err error) error {
	if apperror.IsInvalidCode(err) {
		attempt.Fail()
	} else {
		attempt.Cancel(ctx)
	}
	return err
}

func settleSucceeded(ctx context.Context, attempt *ratelimit.Attempt) error {
	if err := attempt.Succeed(ctx); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to clear attempts")
	}
	return nil
}

// attemptError пропускает RATE_LIMITED как есть, ошибки хранилища превращает во внутренние.
func attemptError(err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to record attempt")
}

func (s *VerificationService) clear(ctx context.Context, key string) error {
	if err := s.tracker.Clear(ctx, key); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "failed to clear attempts")
	}
	return nil
}

func validateEmailAndCode(email, otp string) error {
	errs := validation.Errors{}
	errs.Add("email", validation.ValidateEmail(email))
	errs.Add("otp", validation.ValidateOTP(otp))
	if !errs.Empty() {
		return apperror.Validation(errs)
	}
	return nil
}
