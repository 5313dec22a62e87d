package entity

import (
	"fmt"
	"strings"
	"time"
)

type AccessMethod string

const (
	AccessMethodQR  AccessMethod = "QR"
	AccessMethodPIN AccessMethod = "PIN"
	AccessMethodNFC AccessMethod = "NFC"
)

// ParseAccessMethod accepts the method name in any letter case.
func ParseAccessMethod(s string) (AccessMethod, error) {
	switch m := AccessMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case AccessMethodQR, AccessMethodPIN, AccessMethodNFC:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown access method %q", ErrInvalidInput, s)
}

type RoomAccess struct {
	ID            string       `json:"id" db:"id"`
	ReservationID string       `json:"reservationId" db:"reservation_id"`
	UserID        string       `json:"userId" db:"user_id"`
	RoomID        string       `json:"roomId" db:"room_id"`
	AccessMethod  AccessMethod `json:"accessMethod" db:"access_method"`
	AccessToken   string       `json:"accessToken" db:"access_token"`
	AccessTime    *time.Time   `json:"accessTime,omitempty" db:"access_time"`
	ExpiresAt     time.Time    `json:"expiresAt" db:"expires_at"`
	IsUsed        bool         `json:"isUsed" db:"is_used"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
}

// IsLive reports whether the token can still be presented at now.
func (a *RoomAccess) IsLive(now time.Time) bool {
	return !a.IsUsed && now.Before(a.ExpiresAt)
}

// CheckedIn reports whether the token was consumed at the door.
func (a *RoomAccess) CheckedIn() bool {
	return a.AccessTime != nil
}

// VerifyOutcome classifies a verification attempt.
type VerifyOutcome string

const (
	VerifyGranted             VerifyOutcome = "granted"
	VerifyInvalidToken        VerifyOutcome = "invalid_token"
	VerifyAlreadyUsed         VerifyOutcome = "already_used"
	VerifyExpired             VerifyOutcome = "expired"
	VerifyReservationInactive VerifyOutcome = "reservation_inactive"
)

var verifyMessages = map[VerifyOutcome]string{
	VerifyGranted:             "access granted",
	VerifyInvalidToken:        "invalid access token",
	VerifyAlreadyUsed:         "access token already used",
	VerifyExpired:             "access token expired",
	VerifyReservationInactive: "reservation is no longer active",
}

// Message is the human readable text for the outcome.
func (o VerifyOutcome) Message() string {
	return verifyMessages[o]
}

// VerifyResult is returned for every verification, successful or not.
type VerifyResult struct {
	Success bool          `json:"success"`
	Outcome VerifyOutcome `json:"outcome"`
	Message string        `json:"message"`
	Access  *RoomAccess   `json:"roomAccess,omitempty"`
}

// NewVerifyResult builds a result for the outcome.
func NewVerifyResult(outcome VerifyOutcome, access *RoomAccess) *VerifyResult {
	return &VerifyResult{
		Success: outcome == VerifyGranted,
		Outcome: outcome,
		Message: outcome.Message(),
		Access:  access,
	}
}

// RoomStatus tells whether somebody has physically checked in right now.
type RoomStatus struct {
	RoomID             string        `json:"roomId"`
	IsOccupied         bool          `json:"isOccupied"`
	CurrentReservation *Reservation  `json:"currentReservation,omitempty"`
	AccessRecords      []*RoomAccess `json:"accessRecords,omitempty"`
}
