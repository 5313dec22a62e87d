package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/internal/service"
	"github.com/ds124wfegd/roombooker/pkg/queue"
	"github.com/sirupsen/logrus"
)

// TaskHandler runs the per-reservation checks published on confirmation.
// The sweeps cover the same ground, so a task that finds nothing to do is
// a success.
type TaskHandler struct {
	lifecycle service.LifecycleService
}

func NewTaskHandler(lifecycle service.LifecycleService) *TaskHandler {
	return &TaskHandler{lifecycle: lifecycle}
}

func (h *TaskHandler) HandleTask(ctx context.Context, task *queue.Task) error {
	reservationID := task.GetString("reservation_id")
	if reservationID == "" {
		return queue.Permanent(fmt.Errorf("task %s has no reservation_id", task.ID))
	}

	var err error
	switch task.Type {
	case queue.TaskTypeCheckNoShow:
		_, err = h.lifecycle.MarkNoShow(ctx, reservationID)
	case queue.TaskTypeCompleteReservation:
		_, err = h.lifecycle.CompleteReservation(ctx, reservationID)
	default:
		return queue.Permanent(fmt.Errorf("unknown task type %q", task.Type))
	}

	log := logrus.WithFields(logrus.Fields{
		"task_id":        task.ID,
		"task_type":      task.Type,
		"reservation_id": reservationID,
	})
	if due := task.GetTime("due_at"); !due.IsZero() {
		log = log.WithField("lag", time.Since(due).Round(time.Second).String())
	}

	switch {
	case err == nil:
		log.Info("Lifecycle task applied")
		return nil
	case errors.Is(err, entity.ErrInvalidState), errors.Is(err, entity.ErrReservationNotFound):
		log.WithError(err).Debug("Lifecycle task has nothing to do")
		return nil
	case errors.Is(err, entity.ErrTooEarly):
		// delivered slightly ahead of the deadline; the retry lands after it
		return err
	default:
		return fmt.Errorf("failed to apply %s: %w", task.Type, err)
	}
}
