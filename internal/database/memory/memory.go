// Package memory keeps rooms, reservations and access tokens in process.
// It backs the "memory" storage driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	repository "github.com/ds124wfegd/roombooker/internal/database/postgres"
	"github.com/ds124wfegd/roombooker/internal/entity"
)

// Store serializes every write behind one mutex, which gives the same
// guarantees the postgres repositories get from advisory locks and
// conditional updates.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]*entity.Room
	reservations map[string]*entity.Reservation
	accesses     map[string]*entity.RoomAccess
}

func NewStore() *Store {
	return &Store{
		rooms:        make(map[string]*entity.Room),
		reservations: make(map[string]*entity.Reservation),
		accesses:     make(map[string]*entity.RoomAccess),
	}
}

func (s *Store) Rooms() repository.RoomRepository               { return roomStore{s} }
func (s *Store) Reservations() repository.ReservationRepository { return reservationStore{s} }
func (s *Store) Accesses() repository.AccessRepository          { return accessStore{s} }

func copyReservation(r *entity.Reservation) *entity.Reservation {
	c := *r
	if r.CancellationReason != nil {
		reason := *r.CancellationReason
		c.CancellationReason = &reason
	}
	return &c
}

func copyAccess(a *entity.RoomAccess) *entity.RoomAccess {
	c := *a
	if a.AccessTime != nil {
		t := *a.AccessTime
		c.AccessTime = &t
	}
	return &c
}

func copyRoom(r *entity.Room) *entity.Room {
	c := *r
	c.Facilities = append([]string(nil), r.Facilities...)
	c.OperatingHours.Weekdays = append([]int(nil), r.OperatingHours.Weekdays...)
	return &c
}

type roomStore struct{ s *Store }

func (rs roomStore) Create(_ context.Context, room *entity.Room) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	for _, existing := range rs.s.rooms {
		if existing.RoomNumber == room.RoomNumber {
			return fmt.Errorf("%w: room number %s already exists", entity.ErrInvalidInput, room.RoomNumber)
		}
	}
	rs.s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (rs roomStore) GetByID(_ context.Context, id string) (*entity.Room, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()

	room, ok := rs.s.rooms[id]
	if !ok {
		return nil, entity.ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (rs roomStore) List(_ context.Context, filter entity.RoomFilter) ([]*entity.Room, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()

	rooms := make([]*entity.Room, 0, len(rs.s.rooms))
	for _, room := range rs.s.rooms {
		if filter.Matches(room) {
			rooms = append(rooms, copyRoom(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomNumber < rooms[j].RoomNumber })
	return rooms, nil
}

func (rs roomStore) Update(_ context.Context, room *entity.Room) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	if _, ok := rs.s.rooms[room.ID]; !ok {
		return entity.ErrRoomNotFound
	}
	rs.s.rooms[room.ID] = copyRoom(room)
	return nil
}

type reservationStore struct{ s *Store }

// conflictLocked must be called with the write lock held.
func (rs reservationStore) conflictLocked(r *entity.Reservation) bool {
	for _, other := range rs.s.reservations {
		if other.ID == r.ID || other.RoomID != r.RoomID || !other.HoldsSlot() {
			continue
		}
		if other.Overlaps(r.StartTime, r.EndTime) {
			return true
		}
	}
	return false
}

func (rs reservationStore) Create(_ context.Context, reservation *entity.Reservation) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	if rs.conflictLocked(reservation) {
		return fmt.Errorf("%w: room %s is already booked for the requested time", entity.ErrConflict, reservation.RoomID)
	}
	rs.s.reservations[reservation.ID] = copyReservation(reservation)
	return nil
}

func (rs reservationStore) Update(_ context.Context, reservation *entity.Reservation) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	current, ok := rs.s.reservations[reservation.ID]
	if !ok {
		return entity.ErrReservationNotFound
	}
	if !current.HoldsSlot() {
		return fmt.Errorf("%w: reservation %s can no longer be modified", entity.ErrInvalidState, reservation.ID)
	}
	if rs.conflictLocked(reservation) {
		return fmt.Errorf("%w: room %s is already booked for the requested time", entity.ErrConflict, reservation.RoomID)
	}

	updated := copyReservation(current)
	updated.Title = reservation.Title
	updated.Purpose = reservation.Purpose
	updated.StartTime = reservation.StartTime
	updated.EndTime = reservation.EndTime
	updated.Attendees = reservation.Attendees
	updated.UpdatedAt = reservation.UpdatedAt
	rs.s.reservations[reservation.ID] = updated
	return nil
}

func (rs reservationStore) GetByID(_ context.Context, id string) (*entity.Reservation, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()

	r, ok := rs.s.reservations[id]
	if !ok {
		return nil, entity.ErrReservationNotFound
	}
	return copyReservation(r), nil
}

func (rs reservationStore) filter(keep func(*entity.Reservation) bool, less func(a, b *entity.Reservation) bool) []*entity.Reservation {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()

	var out []*entity.Reservation
	for _, r := range rs.s.reservations {
		if keep(r) {
			out = append(out, copyReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func startAsc(a, b *entity.Reservation) bool  { return a.StartTime.Before(b.StartTime) }
func startDesc(a, b *entity.Reservation) bool { return a.StartTime.After(b.StartTime) }

func (rs reservationStore) GetByUserID(_ context.Context, userID string) ([]*entity.Reservation, error) {
	return rs.filter(func(r *entity.Reservation) bool { return r.UserID == userID }, startDesc), nil
}

func (rs reservationStore) GetConfirmedByRoom(_ context.Context, roomID string) ([]*entity.Reservation, error) {
	return rs.filter(func(r *entity.Reservation) bool {
		return r.RoomID == roomID && r.Status == entity.ReservationStatusConfirmed
	}, startAsc), nil
}

func (rs reservationStore) GetActiveByRoomBetween(_ context.Context, roomID string, from, to time.Time) ([]*entity.Reservation, error) {
	return rs.filter(func(r *entity.Reservation) bool {
		return r.RoomID == roomID && r.HoldsSlot() && r.Overlaps(from, to)
	}, startAsc), nil
}

func (rs reservationStore) List(_ context.Context, filter entity.ReservationFilter) ([]*entity.Reservation, int, error) {
	matched := rs.filter(filter.Matches, func(a, b *entity.Reservation) bool {
		if a.StartTime.Equal(b.StartTime) {
			return a.ID < b.ID
		}
		return a.StartTime.After(b.StartTime)
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < total {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

func (rs reservationStore) GetConfirmedStartedBefore(_ context.Context, before time.Time) ([]*entity.Reservation, error) {
	return rs.filter(func(r *entity.Reservation) bool {
		return r.Status == entity.ReservationStatusConfirmed && r.StartTime.Before(before)
	}, startAsc), nil
}

func (rs reservationStore) GetConfirmedEndedBefore(_ context.Context, before time.Time) ([]*entity.Reservation, error) {
	return rs.filter(func(r *entity.Reservation) bool {
		return r.Status == entity.ReservationStatusConfirmed && r.EndTime.Before(before)
	}, func(a, b *entity.Reservation) bool { return a.EndTime.Before(b.EndTime) }), nil
}

func (rs reservationStore) UpdateStatus(_ context.Context, id string, from []entity.ReservationStatus, to entity.ReservationStatus, reason *string) (*entity.Reservation, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	r, ok := rs.s.reservations[id]
	if !ok {
		return nil, entity.ErrReservationNotFound
	}

	allowed := false
	for _, s := range from {
		if r.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: reservation is %s, cannot move to %s", entity.ErrInvalidState, r.Status, to)
	}

	updated := copyReservation(r)
	updated.Status = to
	if reason != nil {
		v := *reason
		updated.CancellationReason = &v
	}
	updated.UpdatedAt = time.Now().UTC()
	rs.s.reservations[id] = updated
	return copyReservation(updated), nil
}

type accessStore struct{ s *Store }

// liveLocked must be called with the lock held.
func (as accessStore) liveLocked(reservationID string) *entity.RoomAccess {
	for _, a := range as.s.accesses {
		if a.ReservationID == reservationID && !a.IsUsed {
			return a
		}
	}
	return nil
}

func (as accessStore) CreateIfAbsent(_ context.Context, access *entity.RoomAccess) (*entity.RoomAccess, error) {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()

	if live := as.liveLocked(access.ReservationID); live != nil {
		return copyAccess(live), nil
	}
	for _, a := range as.s.accesses {
		if !a.IsUsed && a.AccessToken == access.AccessToken {
			return nil, entity.ErrTokenCollision
		}
	}
	as.s.accesses[access.ID] = copyAccess(access)
	return copyAccess(access), nil
}

func (as accessStore) GetActiveByReservation(_ context.Context, reservationID string) (*entity.RoomAccess, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	if live := as.liveLocked(reservationID); live != nil {
		return copyAccess(live), nil
	}
	return nil, entity.ErrAccessNotFound
}

func (as accessStore) GetByToken(_ context.Context, token string) (*entity.RoomAccess, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	var found *entity.RoomAccess
	for _, a := range as.s.accesses {
		if a.AccessToken != token {
			continue
		}
		if !a.IsUsed {
			return copyAccess(a), nil
		}
		if found == nil || a.CreatedAt.After(found.CreatedAt) {
			found = a
		}
	}
	if found == nil {
		return nil, entity.ErrAccessNotFound
	}
	return copyAccess(found), nil
}

func (as accessStore) Consume(_ context.Context, id string, at time.Time) (*entity.RoomAccess, error) {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()

	a, ok := as.s.accesses[id]
	if !ok {
		return nil, entity.ErrAccessNotFound
	}
	if a.IsUsed {
		return nil, entity.ErrTokenAlreadyUsed
	}
	a.IsUsed = true
	t := at.UTC()
	a.AccessTime = &t
	return copyAccess(a), nil
}

func (as accessStore) list(keep func(*entity.RoomAccess) bool) []*entity.RoomAccess {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()

	var out []*entity.RoomAccess
	for _, a := range as.s.accesses {
		if keep(a) {
			out = append(out, copyAccess(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (as accessStore) GetByUserID(_ context.Context, userID string) ([]*entity.RoomAccess, error) {
	return as.list(func(a *entity.RoomAccess) bool { return a.UserID == userID }), nil
}

func (as accessStore) GetByReservationID(_ context.Context, reservationID string) ([]*entity.RoomAccess, error) {
	return as.list(func(a *entity.RoomAccess) bool { return a.ReservationID == reservationID }), nil
}
