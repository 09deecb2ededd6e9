package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldCount = "count"
	fieldLast  = "last"
)

// incrementScript атомарно увеличивает счётчик, обновляет время и TTL.
// TTL на 1 мс длиннее окна: в момент now-last == window запись ещё действует, как в MemoryStore.
var incrementScript = redis.NewScript(`
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('HSET', KEYS[1], 'last', ARGV[1])
redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[2]) + 1)
return count
`)

// reserveScript засчитывает попытку, только если лимит ещё не исчерпан.
// Возвращает {count, last, reserved}.
var reserveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0') or 0
local last = tonumber(redis.call('HGET', KEYS[1], 'last') or '0') or 0
if count > 0 and now - last > window then
  redis.call('DEL', KEYS[1])
  count = 0
  last = 0
end
if count >= limit then
  return {count, last, 0}
end
count = redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('HSET', KEYS[1], 'last', ARGV[1])
redis.call('PEXPIRE', KEYS[1], window + 1)
return {count, now, 1}
`)

// releaseScript возвращает одну попытку и удаляет пустую запись.
var releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local count = redis.call('HINCRBY', KEYS[1], 'count', -1)
if count <= 0 then
  redis.call('DEL', KEYS[1])
end
return count
`)

// RedisStore хранит записи в Redis, чтобы блокировки были общими для всех инстансов.
// Ключ живёт окно блокировки, поэтому Redis сам удаляет устаревшие записи.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore создаёт хранилище поверх клиента Redis.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "attempts"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(identifier string) string {
	return s.prefix + ":" + identifier
}

func (s *RedisStore) Get(ctx context.Context, identifier string) (Record, bool, error) {
	values, err := s.client.HGetAll(ctx, s.key(identifier)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(values) == 0 {
		return Record{}, false, nil
	}

	count, err := strconv.Atoi(values[fieldCount])
	if err != nil {
		return Record{}, false, fmt.Errorf("parse attempt count: %w", err)
	}
	lastMs, err := strconv.ParseInt(values[fieldLast], 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("parse attempt timestamp: %w", err)
	}

	return Record{Count: count, LastAttemptAt: time.UnixMilli(lastMs)}, true, nil
}

func (s *RedisStore) Increment(ctx context.Context, identifier string, now time.Time, window time.Duration) (Record, error) {
	if window <= 0 {
		return Record{}, errors.New("window must be positive")
	}

	count, err := incrementScript.Run(ctx, s.client, []string{s.key(identifier)}, now.UnixMilli(), window.Milliseconds()).Int64()
	if err != nil {
		return Record{}, fmt.Errorf("redis increment attempt: %w", err)
	}

	return Record{Count: int(count), LastAttemptAt: time.UnixMilli(now.UnixMilli())}, nil
}

func (s *RedisStore) Reserve(ctx context.Context, identifier string, now time.Time, window time.Duration, limit int) (Record, bool, error) {
	if window <= 0 {
		return Record{}, false, errors.New("window must be positive")
	}

	values, err := reserveScript.Run(ctx, s.client, []string{s.key(identifier)},
		now.UnixMilli(), window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return Record{}, false, fmt.Errorf("redis reserve attempt: %w", err)
	}
	if len(values) != 3 {
		return Record{}, false, fmt.Errorf("redis reserve attempt: unexpected reply %v", values)
	}

	rec := Record{Count: int(values[0])}
	if values[1] > 0 {
		rec.LastAttemptAt = time.UnixMilli(values[1])
	}
	return rec, values[2] == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, identifier string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(identifier)}).Err(); err != nil {
		return fmt.Errorf("redis release attempt: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteOlderThan ничего не делает: устаревание обеспечивает TTL ключей.
func (s *RedisStore) DeleteOlderThan(context.Context, time.Time) (int, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)
var _ Store = (*MemoryStore)(nil)

// PingContext проверяет соединение с Redis (health check).
func (s *RedisStore) PingContext(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
