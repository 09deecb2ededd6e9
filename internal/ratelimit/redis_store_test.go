package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStore_IncrementGetDelete(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "test")
	ctx := context.Background()
	now := time.UnixMilli(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli())

	_, ok, err := store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := store.Increment(ctx, "a@x.com", now, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count)

	rec, err = store.Increment(ctx, "a@x.com", now.Add(time.Second), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Count)

	got, ok, err := store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.Count)
	assert.True(t, got.LastAttemptAt.Equal(now.Add(time.Second)))
	assert.Equal(t, 15*time.Minute+time.Millisecond, mr.TTL("test:a@x.com"))

	require.NoError(t, store.Delete(ctx, "a@x.com"))
	_, ok, err = store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_KeyExpiresWithWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	_, err := store.Increment(ctx, "a@x.com", time.Now(), time.Minute)
	require.NoError(t, err)

	mr.FastForward(time.Minute + time.Second)

	_, ok, err := store.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_TrackerLockout(t *testing.T) {
	_, client := newTestRedis(t)
	clock := newFakeClock()
	tracker := NewTracker(NewRedisStore(client, "attempts"), WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < loginPolicy.MaxAttempts; i++ {
		_, err := tracker.RecordFailure(ctx, "a@x.com", loginPolicy)
		require.NoError(t, err)
	}

	status, err := tracker.Check(ctx, "a@x.com", loginPolicy)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.True(t, status.LockedUntil.Equal(clock.Now().Add(loginPolicy.Lockout)))

	require.NoError(t, tracker.Clear(ctx, "a@x.com"))
	status, err = tracker.Check(ctx, "a@x.com", loginPolicy)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
}

func TestRedisStore_RejectsNonPositiveWindow(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client, "")

	_, err := store.Increment(context.Background(), "a", time.Now(), 0)
	assert.Error(t, err)
}

func TestRedisStore_PingContext(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "")

	require.NoError(t, store.PingContext(context.Background()))

	mr.Close()
	assert.Error(t, store.PingContext(context.Background()))
}

func TestRedisStore_ExactWindowBoundaryMatchesMemoryStore(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, "boundary"),
	}
	for name, store := range stores {
		clock := newFakeClock()
		tracker := NewTracker(store, WithClock(clock.Now))
		for i := 0; i < loginPolicy.MaxAttempts; i++ {
			_, err := tracker.RecordFailure(ctx, "a@x.com", loginPolicy)
			require.NoError(t, err, name)
		}
	}

	mr.FastForward(loginPolicy.Lockout)
	for name, store := range stores {
		clock := newFakeClock()
		clock.Advance(loginPolicy.Lockout)
		status, err := NewTracker(store, WithClock(clock.Now)).Check(ctx, "a@x.com", loginPolicy)
		require.NoError(t, err, name)
		assert.False(t, status.Allowed, "%s: на границе окна запись ещё действует", name)
	}

	mr.FastForward(time.Millisecond)
	for name, store := range stores {
		clock := newFakeClock()
		clock.Advance(loginPolicy.Lockout + time.Millisecond)
		status, err := NewTracker(store, WithClock(clock.Now)).Check(ctx, "a@x.com", loginPolicy)
		require.NoError(t, err, name)
		assert.True(t, status.Allowed, "%s: после окна попытка разрешена", name)
	}
}

func TestStores_ReserveRespectsLimit(t *testing.T) {
	_, client := newTestRedis(t)
	now := time.UnixMilli(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli())
	window := 15 * time.Minute

	for name, store := range map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, "reserve"),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 1; i <= 3; i++ {
				rec, reserved, err := store.Reserve(ctx, "a@x.com", now, window, 3)
				require.NoError(t, err)
				assert.True(t, reserved)
				assert.Equal(t, i, rec.Count)
			}

			rec, reserved, err := store.Reserve(ctx, "a@x.com", now.Add(time.Minute), window, 3)
			require.NoError(t, err)
			assert.False(t, reserved)
			assert.Equal(t, 3, rec.Count)
			assert.True(t, rec.LastAttemptAt.Equal(now), "отказ не сдвигает время последней попытки")

			require.NoError(t, store.Release(ctx, "a@x.com"))
			got, ok, err := store.Get(ctx, "a@x.com")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 2, got.Count)

			rec, reserved, err = store.Reserve(ctx, "a@x.com", now.Add(window+time.Millisecond), window, 3)
			require.NoError(t, err)
			assert.True(t, reserved, "устаревшая запись начинается заново")
			assert.Equal(t, 1, rec.Count)

			require.NoError(t, store.Release(ctx, "a@x.com"))
			_, ok, err = store.Get(ctx, "a@x.com")
			require.NoError(t, err)
			assert.False(t, ok, "пустая запись удаляется")

			require.NoError(t, store.Release(ctx, "nobody@x.com"))
		})
	}
}

func TestRedisStore_KeyJoinsPrefixWithSingleColon(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "sudastock:attempts")

	_, err := store.Increment(context.Background(), "a@x.com", time.Now(), time.Minute)
	require.NoError(t, err)

	assert.True(t, mr.Exists("sudastock:attempts:a@x.com"))
	assert.False(t, mr.Exists("sudastock:attempts::a@x.com"))
	assert.Equal(t, "attempts:a@x.com", NewRedisStore(client, "").key("a@x.com"))
}
