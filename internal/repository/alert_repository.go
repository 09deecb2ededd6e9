package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alwalid54321/su-st-sub001/internal/models"
	"github.com/alwalid54321/su-st-sub001/internal/repository/common"
)

var (
	// ErrAlertNotFound возвращается, если алерта нет или он принадлежит другому пользователю.
	ErrAlertNotFound = errors.New("price alert not found")
	// ErrMarketNotFound - алерт ссылается на несуществующую позицию рынка.
	ErrMarketNotFound = errors.New("market data not found")
)

// AlertRepository работает с price_alerts.
type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// ListByUser возвращает алерты пользователя вместе с текущей ценой.
func (r *AlertRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PriceAlert, error) {
	alerts := []models.PriceAlert{}
	query := `
		SELECT a.id, a.user_id, a.market_data_id, a.target_price, a.condition, a.is_active,
			a.last_triggered, a.created_at, m.name AS market_name, m.value AS market_value
		FROM price_alerts a
		JOIN market_data m ON m.id = a.market_data_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &alerts, query, userID); err != nil {
		return nil, fmt.Errorf("alert repository: list %w", err)
	}
	return alerts, nil
}

// Create сохраняет новый активный алерт.
func (r *AlertRepository) Create(ctx context.Context, alert *models.PriceAlert) error {
	query := `
		INSERT INTO price_alerts (user_id, market_data_id, target_price, condition)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		alert.UserID, alert.MarketDataID, alert.TargetPrice, alert.Condition,
	).Scan(&alert.ID, &alert.IsActive, &alert.CreatedAt)
	if err != nil {
		if common.IsForeignKeyViolation(err) {
			return ErrMarketNotFound
		}
		return fmt.Errorf("alert repository: create %w", err)
	}
	return nil
}

// Delete удаляет алерт владельца.
func (r *AlertRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM price_alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("alert repository: delete %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("alert repository: delete %w", err)
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ListActive возвращает активные алерты с ценой и данными владельца для рассылки.
// Без строки user_settings действуют настройки по умолчанию.
func (r *AlertRepository) ListActive(ctx context.Context) ([]models.ActiveAlert, error) {
	alerts := []models.ActiveAlert{}
	query := `
		SELECT a.id, a.user_id, a.market_data_id, a.target_price, a.condition, a.is_active,
			a.last_triggered, a.created_at, m.name AS market_name, m.value AS market_value,
			u.email AS user_email, COALESCE(s.email_notifications, TRUE) AS email_notifications
		FROM price_alerts a
		JOIN market_data m ON m.id = a.market_data_id
		JOIN users u ON u.id = a.user_id
		LEFT JOIN user_settings s ON s.user_id = a.user_id
		WHERE a.is_active = TRUE
	`
	if err := r.db.SelectContext(ctx, &alerts, query); err != nil {
		return nil, fmt.Errorf("alert repository: list active %w", err)
	}
	return alerts, nil
}

// MarkTriggered деактивирует алерт и запоминает время срабатывания.
func (r *AlertRepository) MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE price_alerts SET is_active = FALSE, last_triggered = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("alert repository: mark triggered %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}
