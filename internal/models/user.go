package models

import (
	"time"

	"github.com/google/uuid"
)

// Тарифные планы аккаунта.
const (
	PlanFree = "free"
	PlanPlus = "plus"
)

// User описывает аккаунт пользователя SudaStock.
type User struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	Username      string     `db:"username" json:"username"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FirstName     *string    `db:"first_name" json:"first_name,omitempty"`
	LastName      *string    `db:"last_name" json:"last_name,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	IsStaff       bool       `db:"is_staff" json:"is_staff"`
	IsSuperuser   bool       `db:"is_superuser" json:"is_superuser"`
	EmailVerified bool       `db:"email_verified" json:"email_verified"`
	Plan          string     `db:"plan" json:"plan"`
	LastLoginAt   *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAdmin сообщает, есть ли у пользователя доступ к админке.
func (u *User) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}

// DisplayName возвращает имя для сессии.
func (u *User) DisplayName() string {
	if u.FirstName != nil && *u.FirstName != "" {
		if u.LastName != nil && *u.LastName != "" {
			return *u.FirstName + " " + *u.LastName
		}
		return *u.FirstName
	}
	return u.Username
}

// UserSummary возвращается после регистрации. Пароль сюда никогда не попадает.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
}

// Summary формирует публичное представление пользователя.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// UserUpdate перечисляет поля, которые администратор может менять.
// nil означает "не трогать".
type UserUpdate struct {
	Plan      *string
	IsActive  *bool
	IsStaff   *bool
	FirstName *string
	LastName  *string
}

// Empty сообщает, что в обновлении нет ни одного поля.
func (u UserUpdate) Empty() bool {
	return u.Plan == nil && u.IsActive == nil && u.IsStaff == nil && u.FirstName == nil && u.LastName == nil
}
