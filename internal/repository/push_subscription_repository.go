package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alwalid54321/su-st-sub001/internal/models"
)

// PushSubscriptionRepository работает с push_subscriptions. endpoint уникален.
type PushSubscriptionRepository struct {
	db *sqlx.DB
}

func NewPushSubscriptionRepository(db *sqlx.DB) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{db: db}
}

// Upsert сохраняет подписку. Существующий endpoint переходит к новому владельцу и ключам.
func (r *PushSubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (user_id, endpoint, auth, p256dh)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id, auth = EXCLUDED.auth, p256dh = EXCLUDED.p256dh
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		sub.UserID, sub.Endpoint, sub.Auth, sub.P256dh,
	).Scan(&sub.ID, &sub.CreatedAt); err != nil {
		return fmt.Errorf("push repository: upsert %w", err)
	}
	return nil
}

// ListByUser возвращает все подписки пользователя.
func (r *PushSubscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error) {
	subs := []models.PushSubscription{}
	query := `SELECT id, user_id, endpoint, auth, p256dh, created_at FROM push_subscriptions WHERE user_id = $1`
	if err := r.db.SelectContext(ctx, &subs, query, userID); err != nil {
		return nil, fmt.Errorf("push repository: list %w", err)
	}
	return subs, nil
}

// Delete удаляет подписку пользователя по endpoint. Отсутствие строки не ошибка.
func (r *PushSubscriptionRepository) Delete(ctx context.Context, userID uuid.UUID, endpoint string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint); err != nil {
		return fmt.Errorf("push repository: delete %w", err)
	}
	return nil
}
