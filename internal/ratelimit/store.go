package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Record - состояние неудачных попыток одного идентификатора.
type Record struct {
	Count         int
	LastAttemptAt time.Time
}

// Store хранит записи попыток. Increment, Reserve и Release обязаны быть атомарными
// чтением-изменением-записью для одного идентификатора.
type Store interface {
	Get(ctx context.Context, identifier string) (Record, bool, error)
	Increment(ctx context.Context, identifier string, now time.Time, window time.Duration) (Record, error)
	// Reserve засчитывает попытку, только если счётчик меньше limit. Запись старше
	// window начинается заново. При reserved=false запись не меняется.
	Reserve(ctx context.Context, identifier string, now time.Time, window time.Duration, limit int) (rec Record, reserved bool, err error)
	// Release возвращает одну зарезервированную попытку.
	Release(ctx context.Context, identifier string) error
	Delete(ctx context.Context, identifier string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore хранит записи в памяти процесса. Перезапуск сбрасывает все блокировки.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, identifier string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identifier]
	return rec, ok, nil
}

// Increment увеличивает счётчик. Запись старше окна начинается заново.
func (s *MemoryStore) Increment(_ context.Context, identifier string, now time.Time, window time.Duration) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identifier]
	if !ok || now.Sub(rec.LastAttemptAt) > window {
		rec = Record{}
	}
	rec.Count++
	rec.LastAttemptAt = now
	s.records[identifier] = rec

	return rec, nil
}

func (s *MemoryStore) Reserve(_ context.Context, identifier string, now time.Time, window time.Duration, limit int) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identifier]
	if !ok || now.Sub(rec.LastAttemptAt) > window {
		rec = Record{}
	}
	if rec.Count >= limit {
		return rec, false, nil
	}
	rec.Count++
	rec.LastAttemptAt = now
	s.records[identifier] = rec

	return rec, true, nil
}

func (s *MemoryStore) Release(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identifier]
	if !ok {
		return nil
	}
	rec.Count--
	if rec.Count <= 0 {
		delete(s.records, identifier)
		return nil
	}
	s.records[identifier] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, identifier)
	return nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if rec.LastAttemptAt.Before(cutoff) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Len возвращает количество записей.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
