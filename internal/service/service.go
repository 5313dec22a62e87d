package service

import (
	"context"
	"time"

	"github.com/ds124wfegd/roombooker/config"
	"github.com/ds124wfegd/roombooker/internal/entity"
)

// CreateReservationRequest is the body of a new booking. Times are UTC.
type CreateReservationRequest struct {
	RoomID    string    `json:"roomId" binding:"required"`
	Title     string    `json:"title" binding:"required,max=255"`
	Purpose   string    `json:"purpose" binding:"max=1000"`
	StartTime time.Time `json:"startTime" binding:"required"`
	EndTime   time.Time `json:"endTime" binding:"required"`
	Attendees int       `json:"attendees" binding:"required"`
}

// UpdateReservationRequest carries only the fields being changed.
type UpdateReservationRequest struct {
	Title     *string    `json:"title,omitempty" binding:"omitempty,max=255"`
	Purpose   *string    `json:"purpose,omitempty" binding:"omitempty,max=1000"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Attendees *int       `json:"attendees,omitempty"`
}

func (r *UpdateReservationRequest) changesTime() bool {
	return r.StartTime != nil || r.EndTime != nil
}

type CreateRoomRequest struct {
	RoomNumber     string                `json:"roomNumber" binding:"required,max=50"`
	Name           string                `json:"name" binding:"required,max=255"`
	Capacity       int                   `json:"capacity" binding:"required,min=1"`
	Location       string                `json:"location" binding:"max=255"`
	Facilities     []string              `json:"facilities"`
	OperatingHours entity.OperatingHours `json:"operatingHours" binding:"required"`
}

type UpdateRoomRequest struct {
	RoomNumber     *string                `json:"roomNumber,omitempty"`
	Name           *string                `json:"name,omitempty"`
	Capacity       *int                   `json:"capacity,omitempty" binding:"omitempty,min=1"`
	Location       *string                `json:"location,omitempty"`
	Facilities     []string               `json:"facilities,omitempty"`
	OperatingHours *entity.OperatingHours `json:"operatingHours,omitempty"`
	IsActive       *bool                  `json:"isActive,omitempty"`
}

// SweepResult summarizes one lifecycle sweep.
type SweepResult struct {
	Examined     int `json:"examined"`
	Transitioned int `json:"transitioned"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

type ReservationService interface {
	CreateReservation(ctx context.Context, req *CreateReservationRequest, ownerID string) (*entity.Reservation, error)
	GetReservation(ctx context.Context, id, callerID string) (*entity.Reservation, error)
	GetUserReservations(ctx context.Context, userID string) ([]*entity.Reservation, error)
	UpdateReservation(ctx context.Context, id string, req *UpdateReservationRequest, callerID string) (*entity.Reservation, error)
	CancelReservation(ctx context.Context, id, reason, callerID string) (*entity.Reservation, error)

	// Административные операции
	ConfirmReservation(ctx context.Context, id string) (*entity.Reservation, error)
	GetRoomReservations(ctx context.Context, roomID string) ([]*entity.Reservation, error)
	// ListReservations returns one page of matches and the total match count.
	ListReservations(ctx context.Context, filter entity.ReservationFilter) ([]*entity.Reservation, int, error)
}

type AccessService interface {
	GenerateAccessToken(ctx context.Context, reservationID string, method entity.AccessMethod, callerID string) (*entity.RoomAccess, error)
	// VerifyAccessToken only returns an error when the store fails; every
	// rejection is reported through the result outcome.
	VerifyAccessToken(ctx context.Context, token string) (*entity.VerifyResult, error)
	GetAccessHistory(ctx context.Context, userID string) ([]*entity.RoomAccess, error)
	GetCurrentRoomStatus(ctx context.Context, roomID string) (*entity.RoomStatus, error)
}

type LifecycleService interface {
	SweepNoShows(ctx context.Context) (*SweepResult, error)
	SweepCompletions(ctx context.Context) (*SweepResult, error)
	MarkNoShow(ctx context.Context, reservationID string) (*entity.Reservation, error)
	CompleteReservation(ctx context.Context, reservationID string) (*entity.Reservation, error)
}

type RoomService interface {
	CreateRoom(ctx context.Context, req *CreateRoomRequest) (*entity.Room, error)
	GetRoom(ctx context.Context, id string) (*entity.Room, error)
	ListRooms(ctx context.Context, filter entity.RoomFilter) ([]*entity.Room, error)
	UpdateRoom(ctx context.Context, id string, req *UpdateRoomRequest) (*entity.Room, error)
	GetAvailability(ctx context.Context, roomID string, date time.Time) (*entity.RoomAvailability, error)
}

// Policy holds the timing rules of the reservation lifecycle.
type Policy struct {
	MinDuration       time.Duration
	MaxDuration       time.Duration
	UpdateCutoff      time.Duration // no edits later than this before start
	CancelCutoff      time.Duration
	AccessLeadTime    time.Duration // tokens become available this long before start
	AccessGracePeriod time.Duration // and stay valid this long after it
	NoShowGrace       time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MinDuration:       30 * time.Minute,
		MaxDuration:       8 * time.Hour,
		UpdateCutoff:      time.Hour,
		CancelCutoff:      30 * time.Minute,
		AccessLeadTime:    10 * time.Minute,
		AccessGracePeriod: 30 * time.Minute,
		NoShowGrace:       10 * time.Minute,
	}
}

// PolicyFromConfig fills unset values with the defaults.
func PolicyFromConfig(cfg *config.BookingConfig) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}
	pick := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	pick(&p.MinDuration, cfg.MinDuration)
	pick(&p.MaxDuration, cfg.MaxDuration)
	pick(&p.UpdateCutoff, cfg.UpdateCutoff)
	pick(&p.CancelCutoff, cfg.CancelCutoff)
	pick(&p.AccessLeadTime, cfg.AccessLeadTime)
	pick(&p.AccessGracePeriod, cfg.AccessGracePeriod)
	pick(&p.NoShowGrace, cfg.NoShowGrace)
	return p
}

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
