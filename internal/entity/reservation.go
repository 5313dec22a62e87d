package entity

import (
	"time"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusNoShow    ReservationStatus = "no_show"
)

// ActiveStatuses are the statuses that hold a room's time slot.
var ActiveStatuses = []ReservationStatus{ReservationStatusPending, ReservationStatusConfirmed}

// IsTerminal reports whether no further transition is allowed.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationStatusCancelled, ReservationStatusCompleted, ReservationStatusNoShow:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known statuses.
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusCancelled,
		ReservationStatusCompleted, ReservationStatusNoShow:
		return true
	}
	return false
}

type Reservation struct {
	ID                 string            `json:"id" db:"id"`
	RoomID             string            `json:"roomId" db:"room_id"`
	UserID             string            `json:"userId" db:"user_id"`
	Title              string            `json:"title" db:"title"`
	Purpose            string            `json:"purpose" db:"purpose"`
	StartTime          time.Time         `json:"startTime" db:"start_time"`
	EndTime            time.Time         `json:"endTime" db:"end_time"`
	Attendees          int               `json:"attendees" db:"attendees"`
	Status             ReservationStatus `json:"status" db:"status"`
	CancellationReason *string           `json:"cancellationReason,omitempty" db:"cancellation_reason"`
	CreatedAt          time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time         `json:"updatedAt" db:"updated_at"`
}

// Duration of the booked slot.
func (r *Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Overlaps applies the half-open interval test against [start, end).
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return Overlaps(r.StartTime, r.EndTime, start, end)
}

// Contains reports whether t falls inside [StartTime, EndTime).
func (r *Reservation) Contains(t time.Time) bool {
	return !t.Before(r.StartTime) && t.Before(r.EndTime)
}

// HoldsSlot reports whether the reservation blocks its time range.
func (r *Reservation) HoldsSlot() bool {
	return r.Status == ReservationStatusPending || r.Status == ReservationStatusConfirmed
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ReservationFilter selects reservations for the admin listing. Zero
// fields do not filter. From and To bound the start time as [From, To).
type ReservationFilter struct {
	Status ReservationStatus
	RoomID string
	UserID string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Matches applies every filter except paging.
func (f ReservationFilter) Matches(r *Reservation) bool {
	switch {
	case f.Status != "" && r.Status != f.Status:
		return false
	case f.RoomID != "" && r.RoomID != f.RoomID:
		return false
	case f.UserID != "" && r.UserID != f.UserID:
		return false
	case f.From != nil && r.StartTime.Before(*f.From):
		return false
	case f.To != nil && !r.StartTime.Before(*f.To):
		return false
	}
	return true
}
