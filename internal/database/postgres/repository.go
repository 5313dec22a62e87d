package repository

import (
	"context"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
)

type ReservationRepository interface {
	// Create and Update check for overlapping pending/confirmed reservations
	// of the same room and write in one serialized step. ErrConflict on overlap.
	Create(ctx context.Context, reservation *entity.Reservation) error
	Update(ctx context.Context, reservation *entity.Reservation) error

	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	GetByUserID(ctx context.Context, userID string) ([]*entity.Reservation, error)
	GetConfirmedByRoom(ctx context.Context, roomID string) ([]*entity.Reservation, error)
	GetActiveByRoomBetween(ctx context.Context, roomID string, from, to time.Time) ([]*entity.Reservation, error)

	// List returns one page of matching reservations, newest start first,
	// and the number of matches across all pages.
	List(ctx context.Context, filter entity.ReservationFilter) ([]*entity.Reservation, int, error)

	// Lifecycle queries
	GetConfirmedStartedBefore(ctx context.Context, before time.Time) ([]*entity.Reservation, error)
	GetConfirmedEndedBefore(ctx context.Context, before time.Time) ([]*entity.Reservation, error)

	// UpdateStatus moves the reservation to status "to" only when its current
	// status is one of "from". Returns ErrReservationNotFound for an unknown id
	// and ErrInvalidState when the current status did not match.
	UpdateStatus(ctx context.Context, id string, from []entity.ReservationStatus, to entity.ReservationStatus, reason *string) (*entity.Reservation, error)
}

type AccessRepository interface {
	// CreateIfAbsent stores access unless an unused token already exists for
	// the reservation and returns whichever row is live afterwards.
	CreateIfAbsent(ctx context.Context, access *entity.RoomAccess) (*entity.RoomAccess, error)
	GetActiveByReservation(ctx context.Context, reservationID string) (*entity.RoomAccess, error)
	GetByToken(ctx context.Context, token string) (*entity.RoomAccess, error)

	// Consume marks the token used. ErrTokenAlreadyUsed if somebody else did first.
	Consume(ctx context.Context, id string, at time.Time) (*entity.RoomAccess, error)

	GetByUserID(ctx context.Context, userID string) ([]*entity.RoomAccess, error)
	GetByReservationID(ctx context.Context, reservationID string) ([]*entity.RoomAccess, error)
}

type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	// List orders rooms by room number.
	List(ctx context.Context, filter entity.RoomFilter) ([]*entity.Room, error)
	Update(ctx context.Context, room *entity.Room) error
}
