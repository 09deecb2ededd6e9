package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/goroutine"
	"github.com/alwalid54321/su-st-sub001/internal/logger"
)

// Sweeper периодически удаляет записи старше самого длинного окна блокировки.
// Запускается один раз при старте сервиса и останавливается при завершении.
type Sweeper struct {
	store    Store
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	observer Observer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSweeper создаёт фоновую задачу очистки.
func NewSweeper(store Store, interval, maxAge time.Duration, observer Observer) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
		observer: observer,
	}
}

// Start запускает цикл очистки. Повторный вызов во время работы ничего не делает
// и возвращает false.
func (s *Sweeper) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	done := s.done
	goroutine.SafeGoWithContext(loopCtx, func(ctx context.Context) {
		defer close(done)
		defer s.finished(done)
		s.loop(ctx)
	})

	return true
}

// finished снимает признак работы, когда цикл завершился сам, например при отмене
// родительского контекста. После этого Start снова запускает задачу.
func (s *Sweeper) finished(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == done {
		s.running = false
	}
}

// Stop останавливает цикл и ждёт его завершения.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				logger.Log.WithError(err).Warn("ratelimit: sweep failed")
			}
		}
	}
}

// SweepOnce выполняет один проход очистки.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteOlderThan(ctx, s.now().Add(-s.maxAge))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.observer.RecordsSwept(removed)
		logger.Log.WithFields(logrus.Fields{"removed": removed}).Debug("ratelimit: stale records swept")
	}
	return removed, nil
}
