// Package notification delivers lifecycle notifications to websocket
// clients, message brokers and the admin chat.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	defaultSendBuffer = 32
)

// ClientMessage is what a websocket client may send.
type ClientMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// Session is one connected websocket client.
type Session struct {
	ID     string
	UserID string
	Admin  bool

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Hub is the registry of live sessions. It owns per-user, admin and room
// subscription indexes and implements service.Notifier.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]*Session
	rooms    map[string]map[string]*Session

	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		sessions:   make(map[string]*Session),
		byUser:     make(map[string]map[string]*Session),
		rooms:      make(map[string]map[string]*Session),
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Add registers a session for an authenticated user.
func (h *Hub) Add(userID string, admin bool, conn *websocket.Conn) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Admin:  admin,
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.ID] = s
	if h.byUser[userID] == nil {
		h.byUser[userID] = make(map[string]*Session)
	}
	h.byUser[userID][s.ID] = s
	return s
}

// Remove drops the session and all its room subscriptions.
func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(h.sessions, sessionID)

	if userSessions := h.byUser[s.UserID]; userSessions != nil {
		delete(userSessions, sessionID)
		if len(userSessions) == 0 {
			delete(h.byUser, s.UserID)
		}
	}
	for roomID, subscribers := range h.rooms {
		delete(subscribers, sessionID)
		if len(subscribers) == 0 {
			delete(h.rooms, roomID)
		}
	}
	s.close()
}

func (h *Hub) Lookup(sessionID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[sessionID]
	return s, ok
}

func (h *Hub) Subscribe(sessionID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[sessionID]
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Session)
	}
	h.rooms[roomID][s.ID] = s
	return nil
}

func (h *Hub) Unsubscribe(sessionID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers := h.rooms[roomID]; subscribers != nil {
		delete(subscribers, sessionID)
		if len(subscribers) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) recipients(n *entity.Notification) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Session
	switch n.Audience {
	case entity.AudienceUser:
		for _, s := range h.byUser[n.Target] {
			out = append(out, s)
		}
	case entity.AudienceRoom:
		for _, s := range h.rooms[n.Target] {
			out = append(out, s)
		}
	case entity.AudienceAdmins:
		for _, s := range h.sessions {
			if s.Admin {
				out = append(out, s)
			}
		}
	}
	return out
}

// Notify queues the notification for every matching session. A session
// whose buffer is full misses the message.
func (h *Hub) Notify(_ context.Context, n *entity.Notification) error {
	targets := h.recipients(n)
	if len(targets) == 0 {
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	for _, s := range targets {
		h.deliver(s, payload)
	}
	return nil
}

func (h *Hub) deliver(s *Session, payload []byte) {
	select {
	case <-s.done:
	case s.send <- payload:
	default:
		logrus.WithFields(logrus.Fields{
			"session_id": s.ID,
			"user_id":    s.UserID,
		}).Warn("Websocket send buffer full, dropping notification")
	}
}

// ServeWS upgrades the request and serves the session until the client
// disconnects or ctx is done.
func (h *Hub) ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string, admin bool) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade websocket: %w", err)
	}

	s := h.Add(userID, admin, conn)
	logrus.WithFields(logrus.Fields{
		"session_id": s.ID,
		"user_id":    userID,
	}).Info("Websocket session opened")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(s)
	}()

	h.readPump(ctx, s)
	h.Remove(s.ID)
	<-done

	logrus.WithField("session_id", s.ID).Info("Websocket session closed")
	return nil
}

func (h *Hub) readPump(ctx context.Context, s *Session) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("session_id", s.ID).Debug("Websocket read error")
			}
			return
		}

		switch msg.Type {
		case "subscribe":
			if msg.RoomID != "" {
				h.Subscribe(s.ID, msg.RoomID)
			}
		case "unsubscribe":
			h.Unsubscribe(s.ID, msg.RoomID)
		default:
			logrus.WithField("type", msg.Type).Debug("Ignoring unknown websocket message")
		}
	}
}

func (h *Hub) writePump(s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
