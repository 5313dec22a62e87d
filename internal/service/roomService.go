package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/ds124wfegd/roombooker/internal/database/postgres"
	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type roomService struct {
	rooms        repository.RoomRepository
	reservations repository.ReservationRepository
	clock        Clock
}

func NewRoomService(rooms repository.RoomRepository, reservations repository.ReservationRepository, clock Clock) RoomService {
	return &roomService{
		rooms:        rooms,
		reservations: reservations,
		clock:        clock,
	}
}

func (s *roomService) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*entity.Room, error) {
	if strings.TrimSpace(req.RoomNumber) == "" || strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: room number and name are required", entity.ErrInvalidInput)
	}
	if req.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be at least 1", entity.ErrInvalidInput)
	}
	if err := req.OperatingHours.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.now()
	room := &entity.Room{
		ID:             uuid.NewString(),
		RoomNumber:     strings.TrimSpace(req.RoomNumber),
		Name:           strings.TrimSpace(req.Name),
		Capacity:       req.Capacity,
		Location:       req.Location,
		Facilities:     req.Facilities,
		OperatingHours: req.OperatingHours,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if room.Facilities == nil {
		room.Facilities = []string{}
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"room_id":     room.ID,
		"room_number": room.RoomNumber,
	}).Info("Room created")
	return room, nil
}

func (s *roomService) GetRoom(ctx context.Context, id string) (*entity.Room, error) {
	return s.rooms.GetByID(ctx, id)
}

func (s *roomService) ListRooms(ctx context.Context, filter entity.RoomFilter) ([]*entity.Room, error) {
	if filter.MinCapacity < 0 {
		return nil, fmt.Errorf("%w: minimum capacity cannot be negative", entity.ErrInvalidInput)
	}

	rooms, err := s.rooms.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []*entity.Room{}
	}
	return rooms, nil
}

func (s *roomService) UpdateRoom(ctx context.Context, id string, req *UpdateRoomRequest) (*entity.Room, error) {
	room, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.RoomNumber != nil {
		room.RoomNumber = strings.TrimSpace(*req.RoomNumber)
	}
	if req.Name != nil {
		room.Name = strings.TrimSpace(*req.Name)
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, fmt.Errorf("%w: capacity must be at least 1", entity.ErrInvalidInput)
		}
		room.Capacity = *req.Capacity
	}
	if req.Location != nil {
		room.Location = *req.Location
	}
	if req.Facilities != nil {
		room.Facilities = req.Facilities
	}
	if req.OperatingHours != nil {
		if err := req.OperatingHours.Validate(); err != nil {
			return nil, err
		}
		room.OperatingHours = *req.OperatingHours
	}
	if req.IsActive != nil {
		room.IsActive = *req.IsActive
	}
	if room.RoomNumber == "" || room.Name == "" {
		return nil, fmt.Errorf("%w: room number and name cannot be empty", entity.ErrInvalidInput)
	}

	room.UpdatedAt = s.clock.now()
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}

	logrus.WithField("room_id", id).Info("Room updated")
	return room, nil
}

// GetAvailability lists the free gaps between pending and confirmed
// reservations inside the opening window of the given UTC date.
func (s *roomService) GetAvailability(ctx context.Context, roomID string, date time.Time) (*entity.RoomAvailability, error) {
	room, err := activeRoom(ctx, s.rooms, roomID)
	if err != nil {
		return nil, err
	}

	day := date.UTC()
	availability := &entity.RoomAvailability{
		RoomID:         roomID,
		Date:           day.Format("2006-01-02"),
		AvailableSlots: []entity.TimeSlot{},
	}

	if !room.OperatingHours.OperatesOn(day.Weekday()) {
		availability.Message = "Room is not available on this day"
		return availability, nil
	}

	hours := room.OperatingHours
	availability.OperatingHours = &hours
	opens, closes := hours.StartTime.On(day), hours.EndTime.On(day)

	booked, err := s.reservations.GetActiveByRoomBetween(ctx, roomID, opens, closes)
	if err != nil {
		return nil, err
	}

	availability.AvailableSlots = freeSlots(opens, closes, booked)
	return availability, nil
}

// freeSlots expects booked sorted by start time.
func freeSlots(opens, closes time.Time, booked []*entity.Reservation) []entity.TimeSlot {
	slots := []entity.TimeSlot{}
	cursor := opens
	for _, r := range booked {
		if r.StartTime.After(cursor) {
			end := r.StartTime
			if end.After(closes) {
				end = closes
			}
			slots = append(slots, entity.TimeSlot{Start: cursor, End: end})
		}
		if r.EndTime.After(cursor) {
			cursor = r.EndTime
		}
	}
	if cursor.Before(closes) {
		slots = append(slots, entity.TimeSlot{Start: cursor, End: closes})
	}
	return slots
}
