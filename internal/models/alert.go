package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertCondition задаёт направление срабатывания алерта.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "ABOVE"
	ConditionBelow AlertCondition = "BELOW"
)

// PriceAlert - ценовой алерт пользователя на позицию рынка.
type PriceAlert struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	UserID        uuid.UUID      `db:"user_id" json:"user_id"`
	MarketDataID  int64          `db:"market_data_id" json:"market_data_id"`
	TargetPrice   float64        `db:"target_price" json:"target_price"`
	Condition     AlertCondition `db:"condition" json:"condition"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	LastTriggered *time.Time     `db:"last_triggered" json:"last_triggered,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`

	MarketName  string  `db:"market_name" json:"market_name,omitempty"`
	MarketValue float64 `db:"market_value" json:"market_value,omitempty"`
}

// Met проверяет условие алерта для текущей цены.
func (a *PriceAlert) Met(value float64) bool {
	switch a.Condition {
	case ConditionAbove:
		return value >= a.TargetPrice
	case ConditionBelow:
		return value <= a.TargetPrice
	}
	return false
}

// ActiveAlert - активный алерт вместе с данными владельца, нужными для рассылки.
type ActiveAlert struct {
	PriceAlert
	UserEmail          string `db:"user_email"`
	EmailNotifications bool   `db:"email_notifications"`
}

// PushSubscription хранит web push подписку браузера.
type PushSubscription struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	Auth      string    `db:"auth" json:"-"`
	P256dh    string    `db:"p256dh" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
