package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxNameLength     = 100
	MaxEmailLength    = 254
	OTPLength         = 6
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	domainRegex   = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	otpRegex      = regexp.MustCompile(`^[0-9]{6}$`)
)

// Errors собирает ошибки по полям. Пустой набор означает отсутствие ошибок.
type Errors map[string]string

// Add запоминает первую ошибку для поля.
func (e Errors) Add(field string, err error) {
	if err == nil {
		return
	}
	if _, ok := e[field]; !ok {
		e[field] = err.Error()
	}
}

// Empty сообщает, что ошибок нет.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// NormalizeEmail приводит адрес к нижнему регистру без пробелов.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s is too long", fieldName)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("Email is required")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("Invalid email format")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("Invalid email format")
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || !domainRegex.MatchString(email[at+1:]) {
		return fmt.Errorf("Invalid email format")
	}

	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("Username is required")
	}

	if err := ValidateLength("Username", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("Username can only contain letters, numbers, hyphens, and underscores")
	}

	return nil
}

// ValidateName проверяет необязательное имя или фамилию.
func ValidateName(fieldName string, value *string) error {
	if value == nil {
		return nil
	}
	return ValidateLength(fieldName, strings.TrimSpace(*value), 0, MaxNameLength)
}

// ValidateOTP проверяет, что код состоит из шести цифр.
func ValidateOTP(code string) error {
	if !otpRegex.MatchString(strings.TrimSpace(code)) {
		return fmt.Errorf("Verification code must be %d digits", OTPLength)
	}
	return nil
}
