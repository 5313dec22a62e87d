package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/roombooker/pkg/queue"
)

// TaskPublisher интерфейс для публикации задач в очередь
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task is a delayed lifecycle check for a single reservation.
type Task struct {
	Type          queue.TaskType
	ReservationID string
	ExecuteAt     time.Time
}

// QueueAdapter адаптирует queue.Queue к TaskPublisher интерфейсу
type QueueAdapter struct {
	queue queue.Queue
}

// NewQueueAdapter создает новый адаптер для очереди
func NewQueueAdapter(q queue.Queue) *QueueAdapter {
	return &QueueAdapter{queue: q}
}

func (a *QueueAdapter) Publish(ctx context.Context, task *Task) error {
	if a.queue == nil {
		return nil // Если очередь не инициализирована, игнорируем
	}

	return a.queue.Publish(ctx, &queue.Task{
		Type: task.Type,
		Data: map[string]interface{}{
			"reservation_id": task.ReservationID,
			"due_at":         task.ExecuteAt.UTC().Format(time.RFC3339),
		},
		ExecuteAt: task.ExecuteAt,
	})
}
