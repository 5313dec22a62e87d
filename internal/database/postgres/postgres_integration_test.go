package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/pkg/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real database only when ROOMBOOKER_TEST_POSTGRES_DSN is set.
func openTestDB(t *testing.T) (RoomRepository, ReservationRepository, AccessRepository) {
	t.Helper()

	dsn := os.Getenv("ROOMBOOKER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ROOMBOOKER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, postgres.RunMigrations(ctx, db))

	return NewRoomRepository(db), NewReservationRepository(db), NewAccessRepository(db)
}

func seedRoom(t *testing.T, rooms RoomRepository) *entity.Room {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	room := &entity.Room{
		ID:         uuid.NewString(),
		RoomNumber: "IT-" + uuid.NewString()[:8],
		Name:       "Integration",
		Capacity:   8,
		Facilities: []string{"whiteboard"},
		OperatingHours: entity.OperatingHours{
			StartTime: entity.MustClockTime("08:00"),
			EndTime:   entity.MustClockTime("20:00"),
			Weekdays:  []int{1, 2, 3, 4, 5},
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, rooms.Create(context.Background(), room))
	return room
}

func newReservation(roomID string, start time.Time, d time.Duration) *entity.Reservation {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entity.Reservation{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    "user-" + uuid.NewString()[:8],
		Title:     "Sync",
		StartTime: start,
		EndTime:   start.Add(d),
		Attendees: 2,
		Status:    entity.ReservationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostgres_RoomRoundTrip(t *testing.T) {
	rooms, _, _ := openTestDB(t)
	room := seedRoom(t, rooms)

	got, err := rooms.GetByID(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.OperatingHours, got.OperatingHours)
	assert.Equal(t, room.Facilities, got.Facilities)

	dup := *room
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, rooms.Create(context.Background(), &dup), entity.ErrInvalidInput)

	_, err = rooms.GetByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, entity.ErrRoomNotFound)
}

func TestPostgres_ConcurrentCreateSingleWinner(t *testing.T) {
	rooms, reservations, _ := openTestDB(t)
	room := seedRoom(t, rooms)
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- reservations.Create(context.Background(), newReservation(room.ID, start, time.Hour))
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, entity.ErrConflict)
	}
	assert.Equal(t, 1, wins)
}

func TestPostgres_ListFilters(t *testing.T) {
	rooms, reservations, _ := openTestDB(t)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	listed, err := rooms.List(ctx, entity.RoomFilter{MinCapacity: 8, Facilities: []string{"WHITEBOARD"}})
	require.NoError(t, err)
	assert.Contains(t, roomIDs(listed), room.ID)

	listed, err = rooms.List(ctx, entity.RoomFilter{Facilities: []string{"whiteboard", "piano"}})
	require.NoError(t, err)
	assert.NotContains(t, roomIDs(listed), room.ID)

	start := time.Now().UTC().Add(96 * time.Hour).Truncate(time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		r := newReservation(room.ID, start.Add(time.Duration(i)*time.Hour), time.Hour)
		require.NoError(t, reservations.Create(ctx, r))
		ids = append(ids, r.ID)
	}

	page, total, err := reservations.List(ctx, entity.ReservationFilter{RoomID: room.ID, Status: entity.ReservationStatusPending, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)

	page, _, err = reservations.List(ctx, entity.ReservationFilter{RoomID: room.ID, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
}

func roomIDs(rooms []*entity.Room) []string {
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestPostgres_UpdateStatusConditional(t *testing.T) {
	rooms, reservations, _ := openTestDB(t)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	r := newReservation(room.ID, time.Now().UTC().Add(72*time.Hour).Truncate(time.Hour), time.Hour)
	require.NoError(t, reservations.Create(ctx, r))

	reason := "moved"
	cancelled, err := reservations.UpdateStatus(ctx, r.ID, entity.ActiveStatuses, entity.ReservationStatusCancelled, &reason)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationStatusCancelled, cancelled.Status)

	_, err = reservations.UpdateStatus(ctx, r.ID, []entity.ReservationStatus{entity.ReservationStatusConfirmed}, entity.ReservationStatusNoShow, nil)
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	_, err = reservations.UpdateStatus(ctx, uuid.NewString(), entity.ActiveStatuses, entity.ReservationStatusCancelled, nil)
	assert.ErrorIs(t, err, entity.ErrReservationNotFound)

	// the slot is free again
	require.NoError(t, reservations.Create(ctx, newReservation(room.ID, r.StartTime, time.Hour)))
}

func TestPostgres_AccessTokens(t *testing.T) {
	rooms, reservations, accesses := openTestDB(t)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	r := newReservation(room.ID, time.Now().UTC().Add(96*time.Hour).Truncate(time.Hour), time.Hour)
	require.NoError(t, reservations.Create(ctx, r))

	token := func(value string) *entity.RoomAccess {
		return &entity.RoomAccess{
			ID:            uuid.NewString(),
			ReservationID: r.ID,
			UserID:        r.UserID,
			RoomID:        r.RoomID,
			AccessMethod:  entity.AccessMethodQR,
			AccessToken:   value,
			ExpiresAt:     r.StartTime.Add(30 * time.Minute),
			CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		}
	}

	first, err := accesses.CreateIfAbsent(ctx, token(uuid.NewString()))
	require.NoError(t, err)
	second, err := accesses.CreateIfAbsent(ctx, token(uuid.NewString()))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := accesses.Consume(ctx, first.ID, time.Now().UTC())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, entity.ErrTokenAlreadyUsed)
	}
	assert.Equal(t, 1, ok)

	used, err := accesses.GetByToken(ctx, first.AccessToken)
	require.NoError(t, err)
	assert.True(t, used.CheckedIn())
}
