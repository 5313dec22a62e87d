package service

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/ds124wfegd/roombooker/internal/database/postgres"
	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/pkg/queue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type reservationService struct {
	reservations repository.ReservationRepository
	rooms        repository.RoomRepository
	notifier     Notifier
	tasks        TaskPublisher
	policy       Policy
	clock        Clock
}

// NewReservationService builds the reservation lifecycle. notifier, tasks
// and clock may be nil.
func NewReservationService(
	reservations repository.ReservationRepository,
	rooms repository.RoomRepository,
	notifier Notifier,
	tasks TaskPublisher,
	policy Policy,
	clock Clock,
) ReservationService {
	return &reservationService{
		reservations: reservations,
		rooms:        rooms,
		notifier:     notifier,
		tasks:        tasks,
		policy:       policy,
		clock:        clock,
	}
}

func (s *reservationService) CreateReservation(ctx context.Context, req *CreateReservationRequest, ownerID string) (*entity.Reservation, error) {
	room, err := activeRoom(ctx, s.rooms, req.RoomID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", entity.ErrInvalidInput)
	}

	now := s.clock.now()
	start, end := req.StartTime.UTC(), req.EndTime.UTC()

	if err := s.policy.validateTiming(start, end, now); err != nil {
		return nil, err
	}
	if err := validateAttendees(room, req.Attendees); err != nil {
		return nil, err
	}
	if err := validateOperatingHours(room, start, end); err != nil {
		return nil, err
	}

	reservation := &entity.Reservation{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		UserID:    ownerID,
		Title:     strings.TrimSpace(req.Title),
		Purpose:   req.Purpose,
		StartTime: start,
		EndTime:   end,
		Attendees: req.Attendees,
		Status:    entity.ReservationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// conflict check happens atomically inside the store
	if err := s.reservations.Create(ctx, reservation); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"room_id":        reservation.RoomID,
		"user_id":        ownerID,
	}).Info("Reservation created")

	notifyReservation(ctx, s.notifier, entity.EventReservationCreated, reservation, now)
	return reservation, nil
}

func (s *reservationService) GetReservation(ctx context.Context, id, callerID string) (*entity.Reservation, error) {
	return findOwned(ctx, s.reservations, id, callerID)
}

func (s *reservationService) GetUserReservations(ctx context.Context, userID string) ([]*entity.Reservation, error) {
	reservations, err := s.reservations.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if reservations == nil {
		reservations = []*entity.Reservation{}
	}
	return reservations, nil
}

func (s *reservationService) UpdateReservation(ctx context.Context, id string, req *UpdateReservationRequest, callerID string) (*entity.Reservation, error) {
	current, err := findOwned(ctx, s.reservations, id, callerID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot update a %s reservation", entity.ErrInvalidState, current.Status)
	}

	now := s.clock.now()
	if now.After(current.StartTime.Add(-s.policy.UpdateCutoff)) {
		return nil, fmt.Errorf("%w: reservations can only be changed up to %d minutes before start",
			entity.ErrTooLate, int(s.policy.UpdateCutoff.Minutes()))
	}

	updated := *current
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", entity.ErrInvalidInput)
		}
		updated.Title = title
	}
	if req.Purpose != nil {
		updated.Purpose = *req.Purpose
	}

	if req.changesTime() || req.Attendees != nil {
		room, err := activeRoom(ctx, s.rooms, current.RoomID)
		if err != nil {
			return nil, err
		}

		if req.StartTime != nil {
			updated.StartTime = req.StartTime.UTC()
		}
		if req.EndTime != nil {
			updated.EndTime = req.EndTime.UTC()
		}
		if req.Attendees != nil {
			updated.Attendees = *req.Attendees
		}

		if req.changesTime() {
			if err := s.policy.validateTiming(updated.StartTime, updated.EndTime, now); err != nil {
				return nil, err
			}
		}
		if err := validateAttendees(room, updated.Attendees); err != nil {
			return nil, err
		}
		if req.changesTime() {
			if err := validateOperatingHours(room, updated.StartTime, updated.EndTime); err != nil {
				return nil, err
			}
		}
	}

	updated.UpdatedAt = now
	if err := s.reservations.Update(ctx, &updated); err != nil {
		return nil, err
	}

	logrus.WithField("reservation_id", id).Info("Reservation updated")

	notifyReservation(ctx, s.notifier, entity.EventReservationUpdated, &updated, now)
	return &updated, nil
}

func (s *reservationService) CancelReservation(ctx context.Context, id, reason, callerID string) (*entity.Reservation, error) {
	current, err := findOwned(ctx, s.reservations, id, callerID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: reservation is already %s", entity.ErrInvalidState, current.Status)
	}

	now := s.clock.now()
	if now.After(current.StartTime.Add(-s.policy.CancelCutoff)) {
		return nil, fmt.Errorf("%w: reservations can only be cancelled up to %d minutes before start",
			entity.ErrTooLate, int(s.policy.CancelCutoff.Minutes()))
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", entity.ErrMissingReason)
	}

	cancelled, err := s.reservations.UpdateStatus(ctx, id, entity.ActiveStatuses, entity.ReservationStatusCancelled, &reason)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": id,
		"reason":         reason,
	}).Info("Reservation cancelled")

	notifyReservation(ctx, s.notifier, entity.EventReservationCancelled, cancelled, now)
	notifyRoomAvailable(ctx, s.notifier, cancelled, cancelled.StartTime, now)
	return cancelled, nil
}

func (s *reservationService) ConfirmReservation(ctx context.Context, id string) (*entity.Reservation, error) {
	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != entity.ReservationStatusPending {
		return nil, fmt.Errorf("%w: only pending reservations can be confirmed, this one is %s",
			entity.ErrInvalidState, current.Status)
	}

	confirmed, err := s.reservations.UpdateStatus(ctx, id,
		[]entity.ReservationStatus{entity.ReservationStatusPending}, entity.ReservationStatusConfirmed, nil)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	logrus.WithField("reservation_id", id).Info("Reservation confirmed")

	notifyReservation(ctx, s.notifier, entity.EventReservationConfirmed, confirmed, now)
	s.scheduleLifecycleChecks(ctx, confirmed)
	return confirmed, nil
}

// scheduleLifecycleChecks queues the precise no-show and completion checks.
// The periodic sweeps still cover the reservation if publishing fails.
func (s *reservationService) scheduleLifecycleChecks(ctx context.Context, r *entity.Reservation) {
	if s.tasks == nil {
		return
	}

	tasks := []*Task{
		{Type: queue.TaskTypeCheckNoShow, ReservationID: r.ID, ExecuteAt: r.StartTime.Add(s.policy.NoShowGrace)},
		{Type: queue.TaskTypeCompleteReservation, ReservationID: r.ID, ExecuteAt: r.EndTime},
	}
	for _, task := range tasks {
		if err := s.tasks.Publish(ctx, task); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"reservation_id": r.ID,
				"task_type":      task.Type,
			}).Warn("Failed to schedule lifecycle task")
		}
	}
}

func (s *reservationService) GetRoomReservations(ctx context.Context, roomID string) ([]*entity.Reservation, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}

	reservations, err := s.reservations.GetConfirmedByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if reservations == nil {
		reservations = []*entity.Reservation{}
	}
	return reservations, nil
}

func (s *reservationService) ListReservations(ctx context.Context, filter entity.ReservationFilter) ([]*entity.Reservation, int, error) {
	switch {
	case filter.Status != "" && !filter.Status.IsValid():
		return nil, 0, fmt.Errorf("%w: unknown status %q", entity.ErrInvalidInput, filter.Status)
	case filter.From != nil && filter.To != nil && filter.From.After(*filter.To):
		return nil, 0, fmt.Errorf("%w: from must not be after to", entity.ErrInvalidInput)
	case filter.Limit < 0 || filter.Offset < 0:
		return nil, 0, fmt.Errorf("%w: limit and offset cannot be negative", entity.ErrInvalidInput)
	}

	reservations, total, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if reservations == nil {
		reservations = []*entity.Reservation{}
	}
	return reservations, total, nil
}
