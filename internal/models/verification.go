package models

import (
	"time"

	"github.com/google/uuid"
)

// CodePurpose определяет назначение одноразового кода.
type CodePurpose string

const (
	PurposeVerification   CodePurpose = "verification"
	PurposeLogin          CodePurpose = "login"
	PurposePasswordReset  CodePurpose = "password_reset"
	PurposeEmailChange    CodePurpose = "email_change"
	PurposeSecurityAction CodePurpose = "security_action"
)

// Valid проверяет, что назначение известно.
func (p CodePurpose) Valid() bool {
	switch p {
	case PurposeVerification, PurposeLogin, PurposePasswordReset, PurposeEmailChange, PurposeSecurityAction:
		return true
	}
	return false
}

// VerificationCode описывает выданный одноразовый код. Записи не удаляются.
type VerificationCode struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Email     string      `db:"email" json:"email"`
	Code      string      `db:"otp" json:"-"`
	Purpose   CodePurpose `db:"purpose" json:"purpose"`
	ExpiresAt time.Time   `db:"expires_at" json:"expires_at"`
	IsUsed    bool        `db:"is_used" json:"is_used"`
	UserID    *uuid.UUID  `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// Live сообщает, можно ли ещё погасить код в момент now.
func (c *VerificationCode) Live(now time.Time) bool {
	return !c.IsUsed && now.Before(c.ExpiresAt)
}
