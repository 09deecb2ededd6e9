package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher хэширует пароли bcrypt с заданной стоимостью.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher создаёт хэшер. Стоимость вне допустимого диапазона заменяется на bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash возвращает bcrypt хэш пароля.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Matches сравнивает пароль с хэшем. Ошибки кроме несовпадения возвращаются как есть.
func (h *PasswordHasher) Matches(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
