package service

import (
	"context"
	"sync"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/sirupsen/logrus"
)

// Notifier delivers a notification to one channel.
type Notifier interface {
	Notify(ctx context.Context, n *entity.Notification) error
}

const (
	defaultNotifyQueueSize   = 256
	defaultNotifySinkTimeout = 5 * time.Second
)

// MultiNotifier fans a notification out to every sink off the caller's
// path. Each sink drains its own queue with a detached context bounded by
// the sink timeout, so a slow broker never holds up a request. A full queue
// drops the notification.
type MultiNotifier struct {
	mu        sync.RWMutex
	sinks     []*sinkQueue
	queueSize int
	timeout   time.Duration
	closed    bool
	wg        sync.WaitGroup
}

type sinkQueue struct {
	name  string
	sink  Notifier
	items chan dispatch
}

type dispatch struct {
	ctx context.Context
	n   *entity.Notification
}

// NewMultiNotifier uses defaults for non-positive queueSize and timeout.
func NewMultiNotifier(queueSize int, timeout time.Duration) *MultiNotifier {
	if queueSize <= 0 {
		queueSize = defaultNotifyQueueSize
	}
	if timeout <= 0 {
		timeout = defaultNotifySinkTimeout
	}
	return &MultiNotifier{queueSize: queueSize, timeout: timeout}
}

// Add registers a sink under a name used in logs and starts its dispatcher.
// nil sinks are ignored.
func (m *MultiNotifier) Add(name string, n Notifier) *MultiNotifier {
	if n == nil {
		return m
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m
	}

	q := &sinkQueue{name: name, sink: n, items: make(chan dispatch, m.queueSize)}
	m.sinks = append(m.sinks, q)

	m.wg.Add(1)
	go m.drain(q)
	return m
}

func (m *MultiNotifier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

// Notify only enqueues and never returns an error.
func (m *MultiNotifier) Notify(ctx context.Context, n *entity.Notification) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil
	}

	// values such as request ids survive, cancellation does not
	detached := context.WithoutCancel(ctx)
	for _, q := range m.sinks {
		select {
		case q.items <- dispatch{ctx: detached, n: n}:
		default:
			logrus.WithFields(logrus.Fields{
				"sink":  q.name,
				"event": n.Event,
			}).Warn("Notification queue full, dropping")
		}
	}
	return nil
}

func (m *MultiNotifier) drain(q *sinkQueue) {
	defer m.wg.Done()

	for d := range q.items {
		ctx, cancel := context.WithTimeout(d.ctx, m.timeout)
		err := q.sink.Notify(ctx, d.n)
		cancel()
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"sink":  q.name,
				"event": d.n.Event,
			}).Warn("Notification delivery failed")
		}
	}
}

// Close stops accepting notifications and waits until the queued ones were
// handed to their sinks.
func (m *MultiNotifier) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, q := range m.sinks {
		close(q.items)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// notify is the fire-and-forget call used by the services.
func notify(ctx context.Context, n Notifier, event entity.NotificationEvent, audience entity.Audience, target string, data interface{}, at time.Time) {
	if n == nil {
		return
	}
	err := n.Notify(ctx, &entity.Notification{
		Event:     event,
		Audience:  audience,
		Target:    target,
		Data:      data,
		Timestamp: at,
	})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Warn("Failed to send notification")
	}
}

// notifyReservation tells the owner and the admins about a reservation change.
func notifyReservation(ctx context.Context, n Notifier, event entity.NotificationEvent, r *entity.Reservation, at time.Time) {
	notify(ctx, n, event, entity.AudienceUser, r.UserID, r, at)
	notify(ctx, n, event, entity.AudienceAdmins, "", r, at)
}

// notifyRoomAvailable tells room subscribers the room is free from the
// given instant because r released it.
func notifyRoomAvailable(ctx context.Context, n Notifier, r *entity.Reservation, from, at time.Time) {
	notify(ctx, n, entity.EventRoomAvailable, entity.AudienceRoom, r.RoomID, entity.RoomAvailableData{
		RoomID:        r.RoomID,
		ReservationID: r.ID,
		AvailableFrom: from,
	}, at)
}
