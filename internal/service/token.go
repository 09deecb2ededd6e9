package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/alwalid54321/su-st-sub001/internal/models"
)

// SessionUser - данные пользователя, которые несёт сессия.
type SessionUser struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	IsStaff       bool      `json:"is_staff"`
	IsSuperuser   bool      `json:"is_superuser"`
	Plan          string    `json:"plan"`
	EmailVerified bool      `json:"email_verified"`
}

// IsAdmin сообщает, есть ли у сессии доступ к админке.
func (u SessionUser) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}

// Session - результат успешного входа.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      SessionUser `json:"user"`
}

type sessionClaims struct {
	Email         string `json:"email"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	IsStaff       bool   `json:"is_staff"`
	IsSuperuser   bool   `json:"is_superuser"`
	Plan          string `json:"plan"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// ErrInvalidToken возвращается для подписи, срока или формата, которые не прошли проверку.
var ErrInvalidToken = errors.New("invalid session token")

// TokenManager отвечает за выпуск и проверку JWT сессий.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock подменяет источник времени (для тестов).
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// Issue выпускает сессию для пользователя.
func (m *TokenManager) Issue(user *models.User) (*Session, error) {
	now := m.now()
	exp := now.Add(m.ttl)

	plan := user.Plan
	if plan == "" {
		plan = models.PlanFree
	}

	su := SessionUser{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		Name:          user.DisplayName(),
		IsStaff:       user.IsStaff,
		IsSuperuser:   user.IsSuperuser,
		Plan:          plan,
		EmailVerified: user.EmailVerified,
	}

	claims := sessionClaims{
		Email:         su.Email,
		Username:      su.Username,
		Name:          su.Name,
		IsStaff:       su.IsStaff,
		IsSuperuser:   su.IsSuperuser,
		Plan:          su.Plan,
		EmailVerified: su.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, err
	}

	return &Session{Token: token, ExpiresAt: exp, User: su}, nil
}

// Parse проверяет токен и восстанавливает сессию.
func (m *TokenManager) Parse(token string) (*Session, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	session := &Session{
		Token: token,
		User: SessionUser{
			ID:            id,
			Email:         claims.Email,
			Username:      claims.Username,
			Name:          claims.Name,
			IsStaff:       claims.IsStaff,
			IsSuperuser:   claims.IsSuperuser,
			Plan:          claims.Plan,
			EmailVerified: claims.EmailVerified,
		},
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
