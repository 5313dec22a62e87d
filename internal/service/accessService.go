package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/ds124wfegd/roombooker/internal/database/postgres"
	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxMintAttempts bounds retries on token value collisions, which only
// matter for six digit PINs.
const maxMintAttempts = 5

type accessService struct {
	accesses     repository.AccessRepository
	reservations repository.ReservationRepository
	rooms        repository.RoomRepository
	notifier     Notifier
	policy       Policy
	clock        Clock
}

func NewAccessService(
	accesses repository.AccessRepository,
	reservations repository.ReservationRepository,
	rooms repository.RoomRepository,
	notifier Notifier,
	policy Policy,
	clock Clock,
) AccessService {
	return &accessService{
		accesses:     accesses,
		reservations: reservations,
		rooms:        rooms,
		notifier:     notifier,
		policy:       policy,
		clock:        clock,
	}
}

func (s *accessService) GenerateAccessToken(ctx context.Context, reservationID string, method entity.AccessMethod, callerID string) (*entity.RoomAccess, error) {
	r, err := findOwned(ctx, s.reservations, reservationID, callerID)
	if err != nil {
		return nil, err
	}

	switch r.Status {
	case entity.ReservationStatusConfirmed:
	case entity.ReservationStatusPending:
		return nil, fmt.Errorf("%w: reservation must be confirmed before access can be generated", entity.ErrInvalidState)
	default:
		return nil, fmt.Errorf("%w: reservation is %s", entity.ErrInvalidState, r.Status)
	}

	now := s.clock.now()
	opens := r.StartTime.Add(-s.policy.AccessLeadTime)
	closes := r.StartTime.Add(s.policy.AccessGracePeriod)
	if now.Before(opens) {
		return nil, fmt.Errorf("%w: access opens %d minutes before the start time",
			entity.ErrTooEarly, int(s.policy.AccessLeadTime.Minutes()))
	}
	if now.After(closes) {
		return nil, fmt.Errorf("%w: access window closed %d minutes after the start time",
			entity.ErrAccessExpired, int(s.policy.AccessGracePeriod.Minutes()))
	}

	existing, err := s.accesses.GetActiveByReservation(ctx, r.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, entity.ErrAccessNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		token, err := newAccessToken(method)
		if err != nil {
			return nil, err
		}

		access, err := s.accesses.CreateIfAbsent(ctx, &entity.RoomAccess{
			ID:            uuid.NewString(),
			ReservationID: r.ID,
			UserID:        r.UserID,
			RoomID:        r.RoomID,
			AccessMethod:  method,
			AccessToken:   token,
			ExpiresAt:     closes,
			CreatedAt:     now,
		})
		if errors.Is(err, entity.ErrTokenCollision) {
			continue
		}
		if err != nil {
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"reservation_id": r.ID,
			"access_id":      access.ID,
			"method":         access.AccessMethod,
		}).Info("Access token issued")
		return access, nil
	}

	return nil, fmt.Errorf("failed to mint a unique access token after %d attempts", maxMintAttempts)
}

func (s *accessService) VerifyAccessToken(ctx context.Context, token string) (*entity.VerifyResult, error) {
	now := s.clock.now()

	token = strings.TrimSpace(token)
	if token == "" {
		return s.deny(ctx, entity.VerifyInvalidToken, nil, now), nil
	}

	access, err := s.accesses.GetByToken(ctx, token)
	if errors.Is(err, entity.ErrAccessNotFound) {
		return s.deny(ctx, entity.VerifyInvalidToken, nil, now), nil
	}
	if err != nil {
		return nil, err
	}

	if access.IsUsed {
		return s.deny(ctx, entity.VerifyAlreadyUsed, access, now), nil
	}
	if now.After(access.ExpiresAt) {
		return s.deny(ctx, entity.VerifyExpired, access, now), nil
	}

	r, err := s.reservations.GetByID(ctx, access.ReservationID)
	if errors.Is(err, entity.ErrReservationNotFound) {
		return s.deny(ctx, entity.VerifyReservationInactive, access, now), nil
	}
	if err != nil {
		return nil, err
	}
	if r.Status != entity.ReservationStatusConfirmed {
		return s.deny(ctx, entity.VerifyReservationInactive, access, now), nil
	}

	consumed, err := s.accesses.Consume(ctx, access.ID, now)
	switch {
	case errors.Is(err, entity.ErrTokenAlreadyUsed):
		return s.deny(ctx, entity.VerifyAlreadyUsed, access, now), nil
	case errors.Is(err, entity.ErrAccessNotFound):
		return s.deny(ctx, entity.VerifyInvalidToken, nil, now), nil
	case err != nil:
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": r.ID,
		"room_id":        r.RoomID,
		"access_id":      consumed.ID,
	}).Info("Access granted")

	notify(ctx, s.notifier, entity.EventAccessGranted, entity.AudienceUser, consumed.UserID, consumed, now)
	notify(ctx, s.notifier, entity.EventRoomOccupied, entity.AudienceRoom, r.RoomID, r, now)

	return entity.NewVerifyResult(entity.VerifyGranted, consumed), nil
}

func (s *accessService) deny(ctx context.Context, outcome entity.VerifyOutcome, access *entity.RoomAccess, now time.Time) *entity.VerifyResult {
	fields := logrus.Fields{"outcome": outcome}
	data := map[string]interface{}{"outcome": outcome}
	if access != nil {
		fields["access_id"] = access.ID
		data["reservationId"] = access.ReservationID
		data["roomId"] = access.RoomID
	}
	logrus.WithFields(fields).Warn("Access denied")

	notify(ctx, s.notifier, entity.EventAccessDenied, entity.AudienceAdmins, "", data, now)
	return entity.NewVerifyResult(outcome, access)
}

func (s *accessService) GetAccessHistory(ctx context.Context, userID string) ([]*entity.RoomAccess, error) {
	history, err := s.accesses.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*entity.RoomAccess{}
	}
	return history, nil
}

// GetCurrentRoomStatus reports a room as occupied when somebody checked in
// for the confirmed reservation running right now.
func (s *accessService) GetCurrentRoomStatus(ctx context.Context, roomID string) (*entity.RoomStatus, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}

	now := s.clock.now()
	status := &entity.RoomStatus{RoomID: roomID}

	running, err := s.reservations.GetActiveByRoomBetween(ctx, roomID, now, now.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}

	for _, r := range running {
		if r.Status != entity.ReservationStatusConfirmed || !r.Contains(now) {
			continue
		}

		accesses, err := s.accesses.GetByReservationID(ctx, r.ID)
		if err != nil {
			return nil, err
		}

		var checkedIn []*entity.RoomAccess
		for _, a := range accesses {
			if a.CheckedIn() {
				checkedIn = append(checkedIn, a)
			}
		}
		if len(checkedIn) > 0 {
			status.IsOccupied = true
			status.CurrentReservation = r
			status.AccessRecords = checkedIn
			break
		}
	}

	return status, nil
}
