package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/repository/common"
)

// ErrCodeNotFound возвращается, когда живого кода с такими параметрами нет.
var ErrCodeNotFound = errors.New("verification code not found")

// VerificationRepository хранит одноразовые коды в email_otps.
// Строки не удаляются, у использованных кодов только выставляется is_used.
type VerificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create сохраняет новый код. В той же транзакции гасит прежние неиспользованные
// коды той же пары (email, purpose), так что живым остаётся только последний.
func (r *VerificationRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := invalidateActive(ctx, tx, code.Email, code.Purpose); err != nil {
			return err
		}

		query := `
			INSERT INTO email_otps (email, otp, purpose, expires_at, user_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, is_used, created_at
		`
		err := tx.QueryRowxContext(ctx, query,
			code.Email, code.Code, code.Purpose, code.ExpiresAt, code.UserID,
		).Scan(&code.ID, &code.IsUsed, &code.CreatedAt)
		if err != nil {
			return fmt.Errorf("verification repository: create %w", err)
		}
		return nil
	})
}

// FindLive ищет неиспользованный и не истёкший на момент now код.
func (r *VerificationRepository) FindLive(ctx context.Context, email string, purpose models.CodePurpose, otp string, now time.Time) (*models.VerificationCode, error) {
	var code models.VerificationCode
	query := `
		SELECT id, email, otp, purpose, expires_at, is_used, user_id, created_at
		FROM email_otps
		WHERE email = $1 AND purpose = $2 AND otp = $3 AND is_used = FALSE AND expires_at > $4
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &code, query, email, purpose, otp, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("verification repository: find %w", err)
	}
	return &code, nil
}

// Consume помечает код использованным. false означает, что код уже погасил
// другой запрос.
func (r *VerificationRepository) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE email_otps SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("verification repository: consume %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("verification repository: consume %w", err)
	}
	return affected == 1, nil
}

// InvalidateActive гасит все неиспользованные коды пары (email, purpose).
func (r *VerificationRepository) InvalidateActive(ctx context.Context, email string, purpose models.CodePurpose) (int64, error) {
	return invalidateActive(ctx, r.db, email, purpose)
}

func invalidateActive(ctx context.Context, exec sqlx.ExecerContext, email string, purpose models.CodePurpose) (int64, error) {
	res, err := exec.ExecContext(ctx,
		`UPDATE email_otps SET is_used = TRUE WHERE email = $1 AND purpose = $2 AND is_used = FALSE`,
		email, purpose)
	if err != nil {
		return 0, fmt.Errorf("verification repository: invalidate %w", err)
	}
	return res.RowsAffected()
}
