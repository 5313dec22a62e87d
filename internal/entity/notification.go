package entity

import "time"

type NotificationEvent string

const (
	EventReservationCreated   NotificationEvent = "reservation:created"
	EventReservationUpdated   NotificationEvent = "reservation:updated"
	EventReservationConfirmed NotificationEvent = "reservation:confirmed"
	EventReservationCancelled NotificationEvent = "reservation:cancelled"
	EventReservationCompleted NotificationEvent = "reservation:completed"
	EventReservationNoShow    NotificationEvent = "reservation:no_show"
	EventRoomOccupied         NotificationEvent = "room:occupied"
	EventRoomAvailable        NotificationEvent = "room:available"
	EventAccessGranted        NotificationEvent = "access:granted"
	EventAccessDenied         NotificationEvent = "access:denied"
)

// Audience selects who receives a notification. Target holds the user id
// for AudienceUser and the room id for AudienceRoom.
type Audience string

const (
	AudienceUser   Audience = "user"
	AudienceAdmins Audience = "admins"
	AudienceRoom   Audience = "room"
)

type Notification struct {
	Event     NotificationEvent `json:"event"`
	Audience  Audience          `json:"audience"`
	Target    string            `json:"target,omitempty"`
	Data      interface{}       `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}

// RoomAvailableData is the payload of room:available.
type RoomAvailableData struct {
	RoomID        string    `json:"roomId"`
	ReservationID string    `json:"reservationId"`
	AvailableFrom time.Time `json:"availableFrom"`
}
