package ratelimit

import (
	"strings"
	"time"
)

// Policy задаёт порог неудачных попыток и длительность блокировки.
type Policy struct {
	Name          string
	MaxAttempts   int
	Lockout       time.Duration
	DeniedMessage string
}

// Policies - набор политик, используемых обработчиками.
type Policies struct {
	Login         Policy
	Verify        Policy
	Resend        Policy
	Register      Policy
	PasswordReset Policy
	LoginCode     Policy
}

// DefaultPolicies возвращает значения рабочего окружения.
func DefaultPolicies() Policies {
	return Policies{
		Login: Policy{
			Name: "login", MaxAttempts: 5, Lockout: 15 * time.Minute,
			DeniedMessage: "Too many login attempts. Please try again later.",
		},
		Verify: Policy{
			Name: "verify", MaxAttempts: 5, Lockout: 15 * time.Minute,
			DeniedMessage: "Too many verification attempts. Please try again later.",
		},
		Resend: Policy{
			Name: "resend", MaxAttempts: 3, Lockout: time.Hour,
			DeniedMessage: "Too many resend attempts. Please wait a while.",
		},
		Register: Policy{
			Name: "register", MaxAttempts: 3, Lockout: time.Hour,
			DeniedMessage: "Too many registration attempts. Please try again later.",
		},
		PasswordReset: Policy{
			Name: "password_reset", MaxAttempts: 5, Lockout: 15 * time.Minute,
			DeniedMessage: "Too many password reset attempts. Please try again later.",
		},
		LoginCode: Policy{
			Name: "login_code", MaxAttempts: 5, Lockout: 15 * time.Minute,
			DeniedMessage: "Too many login code attempts. Please try again later.",
		},
	}
}

// Longest возвращает максимальную длительность блокировки среди политик.
func (p Policies) Longest() time.Duration {
	longest := time.Duration(0)
	for _, policy := range []Policy{p.Login, p.Verify, p.Resend, p.Register, p.PasswordReset, p.LoginCode} {
		if policy.Lockout > longest {
			longest = policy.Lockout
		}
	}
	return longest
}

// Normalize приводит идентификатор к каноническому виду.
func Normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

const (
	verifyPrefix    = "verify_"
	resendPrefix    = "resend_"
	registerPrefix  = "register_"
	resetPrefix     = "reset_"
	loginCodePrefix = "login_code_"
)

var keyPrefixes = []string{verifyPrefix, resendPrefix, registerPrefix, resetPrefix, loginCodePrefix}

// Ключи идентификаторов для разных точек входа.
func LoginKey(email string) string         { return Normalize(email) }
func VerifyKey(email string) string        { return verifyPrefix + Normalize(email) }
func ResendKey(email string) string        { return resendPrefix + Normalize(email) }
func RegisterKey(ip string) string         { return registerPrefix + Normalize(ip) }
func PasswordResetKey(email string) string { return resetPrefix + Normalize(email) }
func LoginCodeKey(email string) string     { return loginCodePrefix + Normalize(email) }
