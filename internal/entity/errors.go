package entity

import "errors"

var (
	// Room errors
	ErrRoomNotFound = errors.New("room not found")

	// Reservation errors
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidTime         = errors.New("invalid time")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrOperatingHours      = errors.New("outside operating hours")
	ErrConflict            = errors.New("reservation conflict")
	ErrMissingReason       = errors.New("cancellation reason is required")

	// State and timing errors
	ErrInvalidState  = errors.New("invalid reservation state")
	ErrTooLate       = errors.New("too late")
	ErrTooEarly      = errors.New("too early")
	ErrAccessExpired = errors.New("access window expired")

	// Access token errors (store level)
	ErrAccessNotFound   = errors.New("access record not found")
	ErrTokenAlreadyUsed = errors.New("access token already used")
	ErrTokenCollision   = errors.New("access token collision")

	// General errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized access")
	ErrForbidden       = errors.New("forbidden operation")
	ErrSweepInProgress = errors.New("sweep already in progress")
)
