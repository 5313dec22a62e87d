package entity

import (
	"fmt"
	"strings"
	"time"
)

// OperatingHours is the daily window a room can be booked in. Weekdays use
// time.Weekday numbering (0 = Sunday). All values are UTC wall clock.
type OperatingHours struct {
	StartTime ClockTime `json:"startTime"`
	EndTime   ClockTime `json:"endTime"`
	Weekdays  []int     `json:"weekdays"`
}

// OperatesOn reports whether the room opens on the given weekday.
func (h OperatingHours) OperatesOn(day time.Weekday) bool {
	for _, wd := range h.Weekdays {
		if wd == int(day) {
			return true
		}
	}
	return false
}

// Validate checks the window itself, not a reservation against it.
func (h OperatingHours) Validate() error {
	if h.StartTime.Minutes >= h.EndTime.Minutes {
		return fmt.Errorf("%w: operating hours start %s must be before end %s", ErrInvalidInput, h.StartTime, h.EndTime)
	}
	for _, wd := range h.Weekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalidInput, wd)
		}
	}
	return nil
}

type Room struct {
	ID             string         `json:"id" db:"id"`
	RoomNumber     string         `json:"roomNumber" db:"room_number"`
	Name           string         `json:"name" db:"name"`
	Capacity       int            `json:"capacity" db:"capacity"`
	Location       string         `json:"location" db:"location"`
	Facilities     []string       `json:"facilities" db:"facilities"`
	OperatingHours OperatingHours `json:"operatingHours" db:"operating_hours"`
	IsActive       bool           `json:"isActive" db:"is_active"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

// RoomFilter narrows the room catalog. Location is a case-insensitive
// substring match; every listed facility must be present.
type RoomFilter struct {
	MinCapacity     int
	Location        string
	Facilities      []string
	IncludeInactive bool
}

func (f RoomFilter) Matches(room *Room) bool {
	if !f.IncludeInactive && !room.IsActive {
		return false
	}
	if room.Capacity < f.MinCapacity {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(room.Location), strings.ToLower(f.Location)) {
		return false
	}
	for _, want := range f.Facilities {
		if !room.HasFacility(want) {
			return false
		}
	}
	return true
}

// HasFacility compares case-insensitively.
func (r *Room) HasFacility(name string) bool {
	for _, f := range r.Facilities {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// TimeSlot is a half-open [Start, End) interval.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RoomAvailability describes the free slots of a room on one UTC date.
type RoomAvailability struct {
	RoomID         string          `json:"roomId"`
	Date           string          `json:"date"`
	OperatingHours *OperatingHours `json:"operatingHours,omitempty"`
	AvailableSlots []TimeSlot      `json:"availableSlots"`
	Message        string          `json:"message,omitempty"`
}
