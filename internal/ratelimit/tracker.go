package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
	"github.com/alwalid54321/su-st-sub001/internal/pkg/apperror"
)

// Status - результат проверки идентификатора.
type Status struct {
	Allowed           bool
	RemainingAttempts int
	LockedUntil       time.Time
}

// Observer получает события трекера (метрики).
type Observer interface {
	AttemptFailed(policy string)
	AttemptDenied(policy string)
	RecordsSwept(n int)
}

type nopObserver struct{}

func (nopObserver) AttemptFailed(string) {}
func (nopObserver) AttemptDenied(string) {}
func (nopObserver) RecordsSwept(int)     {}

// Tracker считает неудачные попытки по идентификатору и решает, пропускать ли запрос.
// Кроме Tracker никто не читает и не меняет записи хранилища.
type Tracker struct {
	store    Store
	now      func() time.Time
	observer Observer
}

// Option настраивает Tracker.
type Option func(*Tracker)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithObserver подключает метрики.
func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		if o != nil {
			t.observer = o
		}
	}
}

// NewTracker создаёт трекер поверх хранилища.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now возвращает текущее время трекера.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// Check сообщает, разрешена ли попытка. Устаревшая запись удаляется на месте.
func (t *Tracker) Check(ctx context.Context, identifier string, policy Policy) (Status, error) {
	identifier = Normalize(identifier)
	now := t.now()

	rec, ok, err := t.store.Get(ctx, identifier)
	if err != nil {
		return Status{}, fmt.Errorf("ratelimit: check %s: %w", policy.Name, err)
	}
	if !ok {
		return Status{Allowed: true, RemainingAttempts: policy.MaxAttempts}, nil
	}

	if now.Sub(rec.LastAttemptAt) > policy.Lockout {
		if err := t.store.Delete(ctx, identifier); err != nil {
			return Status{}, fmt.Errorf("ratelimit: drop stale record: %w", err)
		}
		return Status{Allowed: true, RemainingAttempts: policy.MaxAttempts}, nil
	}

	if rec.Count >= policy.MaxAttempts {
		return Status{Allowed: false, LockedUntil: rec.LastAttemptAt.Add(policy.Lockout)}, nil
	}

	return Status{Allowed: true, RemainingAttempts: policy.MaxAttempts - rec.Count}, nil
}

// Guard возвращает RATE_LIMITED, если идентификатор заблокирован.
func (t *Tracker) Guard(ctx context.Context, identifier string, policy Policy) error {
	status, err := t.Check(ctx, identifier, policy)
	if err != nil {
		return err
	}
	if status.Allowed {
		return nil
	}

	return t.deny(Normalize(identifier), policy, status.LockedUntil)
}

func (t *Tracker) deny(identifier string, policy Policy, lockedUntil time.Time) error {
	t.observer.AttemptDenied(policy.Name)
	logger.Log.WithFields(logrus.Fields{
		"identifier":   maskIdentifier(identifier),
		"policy":       policy.Name,
		"locked_until": lockedUntil,
	}).Warn("ratelimit: request denied")

	message := policy.DeniedMessage
	if message == "" {
		message = "Too many attempts. Please try again later."
	}
	return apperror.RateLimited(message, lockedUntil)
}

// maskIdentifier скрывает адрес в ключе для логов: verify_a***@x.com.
func maskIdentifier(identifier string) string {
	if !strings.Contains(identifier, "@") {
		return identifier
	}
	for _, prefix := range keyPrefixes {
		if rest, ok := strings.CutPrefix(identifier, prefix); ok {
			return prefix + logger.MaskEmail(rest)
		}
	}
	return logger.MaskEmail(identifier)
}

// Attempt - попытка, засчитанная в лимит до проверки кода или пароля.
// Итог фиксируется одним из Fail, Succeed или Cancel.
type Attempt struct {
	tracker    *Tracker
	identifier string
	policy     Policy
	count      int
	settled    bool
}

// Begin атомарно резервирует попытку. Если лимит исчерпан, возвращает RATE_LIMITED
// и ничего не записывает. Параллельные запросы получают не больше MaxAttempts попыток.
func (t *Tracker) Begin(ctx context.Context, identifier string, policy Policy) (*Attempt, error) {
	identifier = Normalize(identifier)

	rec, reserved, err := t.store.Reserve(ctx, identifier, t.now(), policy.Lockout, policy.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: reserve %s: %w", policy.Name, err)
	}
	if !reserved {
		return nil, t.deny(identifier, policy, rec.LastAttemptAt.Add(policy.Lockout))
	}

	return &Attempt{tracker: t, identifier: identifier, policy: policy, count: rec.Count}, nil
}

// Fail оставляет попытку засчитанной.
func (a *Attempt) Fail() {
	if a.settled {
		return
	}
	a.settled = true
	a.tracker.observer.AttemptFailed(a.policy.Name)

	if a.count == a.policy.MaxAttempts {
		logger.Log.WithFields(logrus.Fields{
			"identifier": maskIdentifier(a.identifier),
			"policy":     a.policy.Name,
			"count":      a.count,
		}).Warn("ratelimit: identifier locked")
	}
}

// Succeed очищает историю идентификатора.
func (a *Attempt) Succeed(ctx context.Context) error {
	if a.settled {
		return nil
	}
	a.settled = true
	return a.tracker.Clear(ctx, a.identifier)
}

// Cancel возвращает попытку: исход не считается ни успехом, ни неудачей.
func (a *Attempt) Cancel(ctx context.Context) {
	if a.settled {
		return
	}
	a.settled = true
	if err := a.tracker.store.Release(ctx, a.identifier); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"identifier": maskIdentifier(a.identifier),
			"policy":     a.policy.Name,
		}).Warn("ratelimit: failed to release attempt")
	}
}

// RecordFailure фиксирует неудачную попытку и возвращает новое состояние.
func (t *Tracker) RecordFailure(ctx context.Context, identifier string, policy Policy) (Status, error) {
	identifier = Normalize(identifier)

	rec, err := t.store.Increment(ctx, identifier, t.now(), policy.Lockout)
	if err != nil {
		return Status{}, fmt.Errorf("ratelimit: record %s: %w", policy.Name, err)
	}
	t.observer.AttemptFailed(policy.Name)

	if rec.Count >= policy.MaxAttempts {
		if rec.Count == policy.MaxAttempts {
			logger.Log.WithFields(logrus.Fields{
				"identifier": maskIdentifier(identifier),
				"policy":     policy.Name,
				"count":      rec.Count,
			}).Warn("ratelimit: identifier locked")
		}
		return Status{Allowed: false, LockedUntil: rec.LastAttemptAt.Add(policy.Lockout)}, nil
	}

	return Status{Allowed: true, RemainingAttempts: policy.MaxAttempts - rec.Count}, nil
}

// Clear удаляет историю попыток. Повторный вызов безопасен.
func (t *Tracker) Clear(ctx context.Context, identifier string) error {
	if err := t.store.Delete(ctx, Normalize(identifier)); err != nil {
		return fmt.Errorf("ratelimit: clear: %w", err)
	}
	return nil
}
