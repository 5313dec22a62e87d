package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	repository "github.com/ds124wfegd/roombooker/internal/database/postgres"
	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/sirupsen/logrus"
)

// errCheckedIn marks a confirmed reservation that must not become a no-show.
var errCheckedIn = fmt.Errorf("%w: guest already checked in", entity.ErrInvalidState)

type lifecycleService struct {
	reservations repository.ReservationRepository
	accesses     repository.AccessRepository
	notifier     Notifier
	policy       Policy
	clock        Clock
}

func NewLifecycleService(
	reservations repository.ReservationRepository,
	accesses repository.AccessRepository,
	notifier Notifier,
	policy Policy,
	clock Clock,
) LifecycleService {
	return &lifecycleService{
		reservations: reservations,
		accesses:     accesses,
		notifier:     notifier,
		policy:       policy,
		clock:        clock,
	}
}

func (s *lifecycleService) noShowReason() string {
	return fmt.Sprintf("No check-in within %d minutes of the start time", int(s.policy.NoShowGrace.Minutes()))
}

// SweepNoShows marks confirmed reservations whose start passed more than
// the grace period ago without any check-in.
func (s *lifecycleService) SweepNoShows(ctx context.Context) (*SweepResult, error) {
	now := s.clock.now()

	candidates, err := s.reservations.GetConfirmedStartedBefore(ctx, now.Add(-s.policy.NoShowGrace))
	if err != nil {
		return nil, fmt.Errorf("failed to list no-show candidates: %w", err)
	}

	result := s.sweep(ctx, "no_show", candidates, func(r *entity.Reservation) error {
		_, err := s.markNoShow(ctx, r.ID, now)
		return err
	})
	return result, nil
}

// SweepCompletions completes confirmed reservations that already ended.
func (s *lifecycleService) SweepCompletions(ctx context.Context) (*SweepResult, error) {
	now := s.clock.now()

	candidates, err := s.reservations.GetConfirmedEndedBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list completion candidates: %w", err)
	}

	result := s.sweep(ctx, "completion", candidates, func(r *entity.Reservation) error {
		_, err := s.complete(ctx, r.ID, now)
		return err
	})
	return result, nil
}

func (s *lifecycleService) sweep(ctx context.Context, kind string, candidates []*entity.Reservation, apply func(*entity.Reservation) error) *SweepResult {
	result := &SweepResult{}

	for _, r := range candidates {
		if ctx.Err() != nil {
			logrus.WithField("sweep", kind).Warn("Sweep interrupted by context cancellation")
			break
		}

		result.Examined++
		err := apply(r)
		switch {
		case err == nil:
			result.Transitioned++
		case errors.Is(err, entity.ErrInvalidState), errors.Is(err, entity.ErrTooEarly):
			// changed concurrently or not due yet
			result.Skipped++
		default:
			result.Failed++
			logrus.WithError(err).WithFields(logrus.Fields{
				"sweep":          kind,
				"reservation_id": r.ID,
			}).Error("Failed to process reservation")
		}
	}

	logrus.WithFields(logrus.Fields{
		"sweep":        kind,
		"examined":     result.Examined,
		"transitioned": result.Transitioned,
		"skipped":      result.Skipped,
		"failed":       result.Failed,
	}).Info("Lifecycle sweep finished")

	return result
}

func (s *lifecycleService) MarkNoShow(ctx context.Context, reservationID string) (*entity.Reservation, error) {
	return s.markNoShow(ctx, reservationID, s.clock.now())
}

func (s *lifecycleService) CompleteReservation(ctx context.Context, reservationID string) (*entity.Reservation, error) {
	return s.complete(ctx, reservationID, s.clock.now())
}

func (s *lifecycleService) markNoShow(ctx context.Context, id string, now time.Time) (*entity.Reservation, error) {
	r, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != entity.ReservationStatusConfirmed {
		return nil, fmt.Errorf("%w: reservation is %s", entity.ErrInvalidState, r.Status)
	}
	if !now.After(r.StartTime.Add(s.policy.NoShowGrace)) {
		return nil, fmt.Errorf("%w: no-show grace period has not passed", entity.ErrTooEarly)
	}

	accesses, err := s.accesses.GetByReservationID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, a := range accesses {
		if a.CheckedIn() {
			return nil, errCheckedIn
		}
	}

	reason := s.noShowReason()
	updated, err := s.reservations.UpdateStatus(ctx, id,
		[]entity.ReservationStatus{entity.ReservationStatusConfirmed}, entity.ReservationStatusNoShow, &reason)
	if err != nil {
		return nil, err
	}

	logrus.WithField("reservation_id", id).Info("Reservation marked as no-show")

	notifyReservation(ctx, s.notifier, entity.EventReservationNoShow, updated, now)
	notifyRoomAvailable(ctx, s.notifier, updated, now, now)
	return updated, nil
}

func (s *lifecycleService) complete(ctx context.Context, id string, now time.Time) (*entity.Reservation, error) {
	r, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != entity.ReservationStatusConfirmed {
		return nil, fmt.Errorf("%w: reservation is %s", entity.ErrInvalidState, r.Status)
	}
	if !now.After(r.EndTime) {
		return nil, fmt.Errorf("%w: reservation has not ended yet", entity.ErrTooEarly)
	}

	updated, err := s.reservations.UpdateStatus(ctx, id,
		[]entity.ReservationStatus{entity.ReservationStatusConfirmed}, entity.ReservationStatusCompleted, nil)
	if err != nil {
		return nil, err
	}

	logrus.WithField("reservation_id", id).Info("Reservation completed")

	notifyReservation(ctx, s.notifier, entity.EventReservationCompleted, updated, now)
	notifyRoomAvailable(ctx, s.notifier, updated, updated.EndTime, now)
	return updated, nil
}
