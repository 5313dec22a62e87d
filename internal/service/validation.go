package service

import (
	"context"
	"fmt"
	"time"

	repository "github.com/ds124wfegd/roombooker/internal/database/postgres"
	"github.com/ds124wfegd/roombooker/internal/entity"
)

// validateTiming checks that the slot starts in the future and that its
// length fits the policy bounds.
func (p Policy) validateTiming(start, end, now time.Time) error {
	if !start.After(now) {
		return fmt.Errorf("%w: start time must be in the future", entity.ErrInvalidTime)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start time must be before end time", entity.ErrInvalidTime)
	}

	d := end.Sub(start)
	if d < p.MinDuration || d > p.MaxDuration {
		return fmt.Errorf("%w: duration must be between %d and %d minutes, got %s",
			entity.ErrInvalidDuration, int(p.MinDuration.Minutes()), int(p.MaxDuration.Minutes()), d)
	}
	return nil
}

func validateAttendees(room *entity.Room, attendees int) error {
	if attendees < 1 {
		return fmt.Errorf("%w: attendees must be at least 1", entity.ErrInvalidInput)
	}
	if attendees > room.Capacity {
		return fmt.Errorf("%w: %d attendees exceed room capacity of %d",
			entity.ErrCapacityExceeded, attendees, room.Capacity)
	}
	return nil
}

// validateOperatingHours requires the whole slot to lie inside the opening
// window of a single operating day.
func validateOperatingHours(room *entity.Room, start, end time.Time) error {
	hours := room.OperatingHours
	start, end = start.UTC(), end.UTC()

	if !hours.OperatesOn(start.Weekday()) {
		return fmt.Errorf("%w: room is closed on %s", entity.ErrOperatingHours, start.Weekday())
	}

	opens := hours.StartTime.On(start)
	closes := hours.EndTime.On(start)
	if start.Before(opens) || end.After(closes) {
		return fmt.Errorf("%w: reservation must be within %s-%s on a single day",
			entity.ErrOperatingHours, hours.StartTime, hours.EndTime)
	}
	return nil
}

// activeRoom treats a deactivated room the same as a missing one.
func activeRoom(ctx context.Context, rooms repository.RoomRepository, id string) (*entity.Room, error) {
	room, err := rooms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, fmt.Errorf("%w: room %s is not active", entity.ErrRoomNotFound, id)
	}
	return room, nil
}

// findOwned loads a reservation and checks that callerID owns it.
func findOwned(ctx context.Context, reservations repository.ReservationRepository, id, callerID string) (*entity.Reservation, error) {
	r, err := reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != callerID {
		return nil, fmt.Errorf("%w: reservation belongs to another user", entity.ErrForbidden)
	}
	return r, nil
}
