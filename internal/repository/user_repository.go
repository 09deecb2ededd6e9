package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/repository/common"
)

// ErrUserNotFound возвращается, когда запись пользователя не найдена.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists возвращается при конфликте email или username.
var ErrUserExists = errors.New("user already exists")

const userColumns = `id, email, username, password_hash, first_name, last_name, is_active, is_staff,
	is_superuser, email_verified, plan, last_login_at, created_at, updated_at`

// UserRepository отвечает за таблицу users. Строка user_settings создаётся вместе с пользователем.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт пользователя вместе со строкой user_settings по умолчанию.
// Заполняет ID и временные метки.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}

	query := `
		INSERT INTO users (email, username, password_hash, first_name, last_name, is_active, is_staff, is_superuser, email_verified, plan)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(
			ctx, query,
			user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
			user.IsActive, user.IsStaff, user.IsSuperuser, user.EmailVerified, user.Plan,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO user_settings (user_id) VALUES ($1)`, user.ID)
		return err
	})
	if err != nil {
		if common.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return common.GetByField[models.User](ctx, r.db, "users", "email", email, ErrUserNotFound)
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
}

// ExistsByEmailOrUsername проверяет, заняты ли email или username.
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR LOWER(username) = LOWER($2))`
	if err := r.db.GetContext(ctx, &exists, query, email, username); err != nil {
		return false, fmt.Errorf("user repository: exists %w", err)
	}
	return exists, nil
}

// MarkEmailVerified выставляет email_verified.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "mark verified",
		`UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

// UpdatePassword сохраняет новый хэш пароля.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.execOne(ctx, "update password",
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// UpdateLastLogin фиксирует время входа.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.execOne(ctx, "update last login",
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
}

// SetActive включает или отключает аккаунт.
func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.execOne(ctx, "set active",
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// List возвращает всех пользователей, новые первыми.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("user repository: list %w", err)
	}
	return users, nil
}

// Update применяет к пользователю только заданные поля UserUpdate.
func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	if upd.Empty() {
		return r.GetByID(ctx, id)
	}

	sets := make([]string, 0, 6)
	args := []interface{}{id}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if upd.Plan != nil {
		add("plan", *upd.Plan)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if upd.IsStaff != nil {
		add("is_staff", *upd.IsStaff)
	}
	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns

	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: update %w", err)
	}
	return &user, nil
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("user repository: %s %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user repository: %s %w", op, err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
