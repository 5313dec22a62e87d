package queue

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()

	addr := os.Getenv("ROOMBOOKER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROOMBOOKER_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())

	q := NewRedisQueue(client, &RedisQueueConfig{
		Prefix:       "test:" + uuid.NewString(),
		MaxRetries:   1,
		BaseDelay:    50 * time.Millisecond,
		QueueTimeout: 200 * time.Millisecond,
		PollEvery:    50 * time.Millisecond,
	}, nil)

	t.Cleanup(func() {
		q.Close()
		client.Close()
	})
	return q, client
}

func TestRedisQueue_DeliversDelayedTask(t *testing.T) {
	q, _ := testQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Task, 1)
	require.NoError(t, q.Subscribe(ctx, func(_ context.Context, task *Task) error {
		got <- task
		return nil
	}))

	require.NoError(t, q.Publish(ctx, &Task{
		Type:      TaskTypeCheckNoShow,
		Data:      map[string]interface{}{"reservation_id": "r-1"},
		ExecuteAt: time.Now().Add(150 * time.Millisecond),
	}))

	select {
	case task := <-got:
		assert.Equal(t, TaskTypeCheckNoShow, task.Type)
		assert.Equal(t, "r-1", task.GetString("reservation_id"))
		assert.Equal(t, 1, task.Attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not delivered")
	}
}

func TestRedisQueue_PermanentFailureGoesToDLQ(t *testing.T) {
	q, _ := testQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Subscribe(ctx, func(_ context.Context, task *Task) error {
		return Permanent(errors.New("reservation_id missing"))
	}))
	require.NoError(t, q.Publish(ctx, &Task{Type: TaskTypeCompleteReservation}))

	require.Eventually(t, func() bool {
		failed, err := q.FailedTasks(ctx, 10)
		return err == nil && len(failed) == 1
	}, 5*time.Second, 50*time.Millisecond)
}
