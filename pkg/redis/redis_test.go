package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("ROOMBOOKER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROOMBOOKER_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLocker_Exclusive(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	prefix := "test:" + uuid.NewString() + ":"

	a := NewLocker(client, prefix)
	b := NewLocker(client, prefix)

	release, err := a.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	_, err = b.Acquire(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()

	releaseB, err := b.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	releaseB()
}

func TestLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	prefix := "test:" + uuid.NewString() + ":"
	l := NewLocker(client, prefix)

	release, err := l.Acquire(ctx, "job", 50*time.Millisecond)
	require.NoError(t, err)

	// expired and taken over before the first holder releases
	time.Sleep(100 * time.Millisecond)
	releaseOther, err := l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	defer releaseOther()

	release()

	_, err = l.Acquire(ctx, "job", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestLocker_KeyNamespace(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"roombooker:lock", "roombooker:lock:no_show_sweep"},
		{"roombooker:lock:", "roombooker:lock:no_show_sweep"},
		{"", "no_show_sweep"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, NewLocker(nil, tt.prefix).key("no_show_sweep"))
		})
	}
}
