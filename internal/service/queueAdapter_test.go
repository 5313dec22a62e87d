package service

import (
	"context"
	"testing"
	"time"

	"github.com/ds124wfegd/roombooker/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingQueue struct {
	tasks []*queue.Task
}

func (q *capturingQueue) Publish(_ context.Context, task *queue.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *capturingQueue) Subscribe(context.Context, queue.Handler) error { return nil }
func (q *capturingQueue) Close() error                                   { return nil }

func TestQueueAdapter_Publish(t *testing.T) {
	q := &capturingQueue{}
	adapter := NewQueueAdapter(q)
	due := time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC)

	require.NoError(t, adapter.Publish(context.Background(), &Task{
		Type:          queue.TaskTypeCheckNoShow,
		ReservationID: "r-42",
		ExecuteAt:     due,
	}))

	require.Len(t, q.tasks, 1)
	task := q.tasks[0]
	assert.Equal(t, queue.TaskTypeCheckNoShow, task.Type)
	assert.Equal(t, due, task.ExecuteAt)
	assert.Equal(t, "r-42", task.GetString("reservation_id"))
	assert.True(t, due.Equal(task.GetTime("due_at")))
}

func TestQueueAdapter_NilQueueIsNoop(t *testing.T) {
	adapter := NewQueueAdapter(nil)
	assert.NoError(t, adapter.Publish(context.Background(), &Task{Type: queue.TaskTypeCompleteReservation}))
}
