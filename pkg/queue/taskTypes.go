package queue

import (
	"context"
)

// Queue интерфейс очереди
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// Handler processes one task. Returning an error wrapped with Permanent
// skips the retries and sends the task straight to the DLQ.
type Handler func(ctx context.Context, task *Task) error
