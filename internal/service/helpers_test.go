package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/roombooker/internal/database/memory"
	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/stretchr/testify/require"
)

// 2026-05-04 is a Monday.
var monday = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*entity.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) has(event entity.NotificationEvent, audience entity.Audience, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.sent {
		if n.Event == event && n.Audience == audience && n.Target == target {
			return true
		}
	}
	return false
}

func (r *recordingNotifier) count(event entity.NotificationEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := 0
	for _, n := range r.sent {
		if n.Event == event {
			c++
		}
	}
	return c
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	tasks []*Task
}

func (p *recordingPublisher) Publish(_ context.Context, task *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return nil
}

type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier
	tasks    *recordingPublisher

	reservations ReservationService
	access       AccessService
	lifecycle    LifecycleService
	rooms        RoomService

	room *entity.Room
}

const (
	alice = "user-alice"
	bob   = "user-bob"
)

// newFixture opens a room Mon-Fri 08:00-20:00 for 10 people and sets the
// clock to Monday 07:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.NewStore(),
		clock:    &fakeClock{now: at(monday, 7, 0)},
		notifier: &recordingNotifier{},
		tasks:    &recordingPublisher{},
	}

	clock := Clock(f.clock.Now)
	policy := DefaultPolicy()

	f.reservations = NewReservationService(f.store.Reservations(), f.store.Rooms(), f.notifier, f.tasks, policy, clock)
	f.access = NewAccessService(f.store.Accesses(), f.store.Reservations(), f.store.Rooms(), f.notifier, policy, clock)
	f.lifecycle = NewLifecycleService(f.store.Reservations(), f.store.Accesses(), f.notifier, policy, clock)
	f.rooms = NewRoomService(f.store.Rooms(), f.store.Reservations(), clock)

	room, err := f.rooms.CreateRoom(context.Background(), &CreateRoomRequest{
		RoomNumber: "A-101",
		Name:       "Focus room",
		Capacity:   10,
		Location:   "1st floor",
		Facilities: []string{"projector"},
		OperatingHours: entity.OperatingHours{
			StartTime: entity.MustClockTime("08:00"),
			EndTime:   entity.MustClockTime("20:00"),
			Weekdays:  []int{1, 2, 3, 4, 5},
		},
	})
	require.NoError(t, err)
	f.room = room

	return f
}

func (f *fixture) book(t *testing.T, owner string, start, end time.Time) *entity.Reservation {
	t.Helper()

	r, err := f.reservations.CreateReservation(context.Background(), &CreateReservationRequest{
		RoomID:    f.room.ID,
		Title:     "Sync",
		StartTime: start,
		EndTime:   end,
		Attendees: 4,
	}, owner)
	require.NoError(t, err)
	return r
}

func (f *fixture) bookConfirmed(t *testing.T, owner string, start, end time.Time) *entity.Reservation {
	t.Helper()

	r := f.book(t, owner, start, end)
	confirmed, err := f.reservations.ConfirmReservation(context.Background(), r.ID)
	require.NoError(t, err)
	return confirmed
}

func (f *fixture) status(t *testing.T, id string) entity.ReservationStatus {
	t.Helper()

	r, err := f.store.Reservations().GetByID(context.Background(), id)
	require.NoError(t, err)
	return r.Status
}
