package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ds124wfegd/roombooker/internal/database/memory"
	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/internal/service"
	"github.com/ds124wfegd/roombooker/internal/transport/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var monday = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

type stubRunner struct {
	result *service.SweepResult
	err    error
}

func (s *stubRunner) RunNoShowCheck(context.Context) (*service.SweepResult, error) {
	return s.result, s.err
}

func (s *stubRunner) RunCompletionCheck(context.Context) (*service.SweepResult, error) {
	return s.result, s.err
}

type testServer struct {
	router *gin.Engine
	now    time.Time
	runner *stubRunner
	roomID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{now: monday.Add(7 * time.Hour), runner: &stubRunner{result: &service.SweepResult{}}}
	clock := service.Clock(func() time.Time { return ts.now })
	policy := service.DefaultPolicy()
	store := memory.NewStore()

	rooms := service.NewRoomService(store.Rooms(), store.Reservations(), clock)
	reservations := service.NewReservationService(store.Reservations(), store.Rooms(), nil, nil, policy, clock)
	access := service.NewAccessService(store.Accesses(), store.Reservations(), store.Rooms(), nil, policy, clock)

	ts.router = InitRoutes(&Handlers{
		Reservations: NewReservationHandler(reservations),
		Access:       NewAccessHandler(access),
		Rooms:        NewRoomHandler(rooms),
		Lifecycle:    NewLifecycleHandler(ts.runner),
	}, RouterConfig{JWTSecret: testSecret, JWTIssuer: "test", RequestTimeout: 5 * time.Second})

	room, err := rooms.CreateRoom(context.Background(), &service.CreateRoomRequest{
		RoomNumber: "A-101",
		Name:       "Focus room",
		Capacity:   6,
		OperatingHours: entity.OperatingHours{
			StartTime: entity.MustClockTime("09:00"),
			EndTime:   entity.MustClockTime("18:00"),
			Weekdays:  []int{1, 2, 3, 4, 5},
		},
	})
	require.NoError(t, err)
	ts.roomID = room.ID
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, user, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := middleware.IssueToken(testSecret, "test", user, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func (ts *testServer) createReservation(t *testing.T, user string, startHour, endHour int) *entity.Reservation {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/v1/reservations", user, middleware.RoleUser, map[string]interface{}{
		"roomId":    ts.roomID,
		"title":     "Planning",
		"startTime": monday.Add(time.Duration(startHour) * time.Hour),
		"endTime":   monday.Add(time.Duration(endHour) * time.Hour),
		"attendees": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var r entity.Reservation
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &r))
	return &r
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/reservations", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/admin/lifecycle/no-show", "alice", middleware.RoleUser, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReservationRoutes_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	r := ts.createReservation(t, "alice", 10, 11)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		status int
		kind   string
	}{
		{"conflict", http.MethodPost, "/api/v1/reservations", "bob", map[string]interface{}{
			"roomId": ts.roomID, "title": "x", "attendees": 2,
			"startTime": monday.Add(10*time.Hour + 30*time.Minute), "endTime": monday.Add(12 * time.Hour),
		}, http.StatusConflict, "conflict"},
		{"capacity", http.MethodPost, "/api/v1/reservations", "bob", map[string]interface{}{
			"roomId": ts.roomID, "title": "x", "attendees": 7,
			"startTime": monday.Add(13 * time.Hour), "endTime": monday.Add(14 * time.Hour),
		}, http.StatusBadRequest, "capacity_exceeded"},
		{"duration", http.MethodPost, "/api/v1/reservations", "bob", map[string]interface{}{
			"roomId": ts.roomID, "title": "x", "attendees": 1,
			"startTime": monday.Add(13 * time.Hour), "endTime": monday.Add(13*time.Hour + 29*time.Minute),
		}, http.StatusBadRequest, "invalid_duration"},
		{"unknown room", http.MethodPost, "/api/v1/reservations", "bob", map[string]interface{}{
			"roomId": "nope", "title": "x", "attendees": 1,
			"startTime": monday.Add(13 * time.Hour), "endTime": monday.Add(14 * time.Hour),
		}, http.StatusNotFound, "not_found"},
		{"malformed body", http.MethodPost, "/api/v1/reservations", "bob", map[string]interface{}{"title": 5},
			http.StatusBadRequest, "invalid_input"},
		{"foreign reservation", http.MethodGet, "/api/v1/reservations/" + r.ID, "bob", nil,
			http.StatusForbidden, "forbidden"},
		{"missing reason", http.MethodPost, "/api/v1/reservations/" + r.ID + "/cancel", "alice", map[string]string{"reason": " "},
			http.StatusBadRequest, "missing_reason"},
		{"cancel without body", http.MethodPost, "/api/v1/reservations/" + r.ID + "/cancel", "alice", nil,
			http.StatusBadRequest, "missing_reason"},
		{"token before confirmation", http.MethodPost, "/api/v1/access/generate", "alice", map[string]string{"reservationId": r.ID, "accessMethod": "qr"},
			http.StatusBadRequest, "invalid_state"},
		{"bad access method", http.MethodPost, "/api/v1/access/generate", "alice", map[string]string{"reservationId": r.ID, "accessMethod": "bluetooth"},
			http.StatusBadRequest, "invalid_input"},
		{"bad availability date", http.MethodGet, "/api/v1/rooms/" + ts.roomID + "/availability?date=monday", "alice", nil,
			http.StatusBadRequest, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.user, middleware.RoleUser, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			e := decode(t, w)
			assert.False(t, e.Success)
			assert.Equal(t, tt.kind, e.Error)
		})
	}
}

func TestAccessFlow(t *testing.T) {
	ts := newTestServer(t)
	r := ts.createReservation(t, "alice", 10, 11)

	w := ts.do(t, http.MethodPost, "/api/v1/admin/reservations/"+r.ID+"/confirm", "root", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ts.now = monday.Add(9*time.Hour + 55*time.Minute)
	w = ts.do(t, http.MethodPost, "/api/v1/access/generate", "alice", middleware.RoleUser,
		map[string]string{"reservationId": r.ID, "accessMethod": "PIN"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var access entity.RoomAccess
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &access))
	assert.Len(t, access.AccessToken, 6)

	verify := func() entity.VerifyResult {
		w := ts.do(t, http.MethodPost, "/api/v1/access/verify", "", "", map[string]string{"accessToken": access.AccessToken})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var result entity.VerifyResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		return result
	}

	ts.now = monday.Add(10 * time.Hour)
	first := verify()
	assert.True(t, first.Success)
	assert.Equal(t, entity.VerifyGranted, first.Outcome)

	second := verify()
	assert.False(t, second.Success)
	assert.Equal(t, entity.VerifyAlreadyUsed, second.Outcome)

	w = ts.do(t, http.MethodGet, "/api/v1/access/rooms/"+ts.roomID+"/status", "bob", middleware.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status entity.RoomStatus
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &status))
	assert.True(t, status.IsOccupied)

	w = ts.do(t, http.MethodGet, "/api/v1/access/history", "alice", middleware.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w).Meta["total"])
}

func TestListPagination(t *testing.T) {
	ts := newTestServer(t)
	for h := 9; h < 15; h++ {
		ts.createReservation(t, "alice", h, h+1)
	}

	w := ts.do(t, http.MethodGet, "/api/v1/reservations?limit=4&offset=0", "alice", middleware.RoleUser, nil)
	require.Equal(t, http.StatusOK, w.Code)

	e := decode(t, w)
	var page []entity.Reservation
	require.NoError(t, json.Unmarshal(e.Data, &page))
	assert.Len(t, page, 4)
	assert.EqualValues(t, 6, e.Meta["total"])
	assert.Equal(t, true, e.Meta["has_more"])
	assert.True(t, page[0].StartTime.After(page[1].StartTime), "newest first")

	w = ts.do(t, http.MethodGet, "/api/v1/reservations?limit=4&offset=4", "alice", middleware.RoleUser, nil)
	e = decode(t, w)
	require.NoError(t, json.Unmarshal(e.Data, &page))
	assert.Len(t, page, 2)
	assert.Equal(t, false, e.Meta["has_more"])
}

func TestLifecycleRoutes(t *testing.T) {
	ts := newTestServer(t)

	ts.runner.result = &service.SweepResult{Examined: 3, Transitioned: 2, Skipped: 1}
	w := ts.do(t, http.MethodPost, "/api/v1/admin/lifecycle/complete", "root", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.SweepResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, 2, result.Transitioned)

	ts.runner.err = fmt.Errorf("%w: no_show", entity.ErrSweepInProgress)
	w = ts.do(t, http.MethodPost, "/api/v1/admin/lifecycle/no-show", "root", middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "sweep_in_progress", decode(t, w).Error)

	ts.runner.err = fmt.Errorf("database is down")
	w = ts.do(t, http.MethodPost, "/api/v1/admin/lifecycle/no-show", "root", middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w).Message)
}

func TestHealth_ReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := InitRoutes(&Handlers{}, RouterConfig{
		Version: "test",
		HealthChecks: map[string]func() error{
			"redis":    func() error { return nil },
			"rabbitmq": func() error { return errors.New("connection is closed") },
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "connection is closed", body.Checks["rabbitmq"])
}

func TestAdminListReservations(t *testing.T) {
	ts := newTestServer(t)
	for h := 9; h < 14; h++ {
		ts.createReservation(t, "alice", h, h+1)
	}
	confirmed := ts.createReservation(t, "bob", 15, 16)
	w := ts.do(t, http.MethodPost, "/api/v1/admin/reservations/"+confirmed.ID+"/confirm", "root", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tests := []struct {
		name    string
		query   url.Values
		role    string
		code    int
		count   int
		total   int
		hasMore bool
	}{
		{"pending first page", url.Values{"status": {"pending"}, "limit": {"2"}}, middleware.RoleAdmin, http.StatusOK, 2, 5, true},
		{"pending last page", url.Values{"status": {"pending"}, "limit": {"2"}, "offset": {"4"}}, middleware.RoleAdmin, http.StatusOK, 1, 5, false},
		{"by user", url.Values{"userId": {"bob"}}, middleware.RoleAdmin, http.StatusOK, 1, 1, false},
		{"time window", url.Values{
			"from": {monday.Add(10 * time.Hour).Format(time.RFC3339)},
			"to":   {monday.Add(12 * time.Hour).Format(time.RFC3339)},
		}, middleware.RoleAdmin, http.StatusOK, 2, 2, false},
		{"unknown status", url.Values{"status": {"archived"}}, middleware.RoleAdmin, http.StatusBadRequest, 0, 0, false},
		{"malformed from", url.Values{"from": {"monday"}}, middleware.RoleAdmin, http.StatusBadRequest, 0, 0, false},
		{"not an admin", url.Values{"status": {"pending"}}, middleware.RoleUser, http.StatusForbidden, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, "/api/v1/admin/reservations?"+tt.query.Encode(), "root", tt.role, nil)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code != http.StatusOK {
				return
			}

			e := decode(t, w)
			var page []entity.Reservation
			require.NoError(t, json.Unmarshal(e.Data, &page))
			assert.Len(t, page, tt.count)
			assert.EqualValues(t, tt.total, e.Meta["total"])
			assert.Equal(t, tt.hasMore, e.Meta["has_more"])
			if status := tt.query.Get("status"); status != "" {
				for _, r := range page {
					assert.Equal(t, entity.ReservationStatus(status), r.Status)
				}
			}
		})
	}
}

func TestListRooms_QueryFilters(t *testing.T) {
	ts := newTestServer(t)

	count := func(t *testing.T, query, role string) int {
		t.Helper()
		w := ts.do(t, http.MethodGet, "/api/v1/rooms"+query, "alice", role, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var rooms []entity.Room
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &rooms))
		return len(rooms)
	}

	assert.Equal(t, 1, count(t, "?minCapacity=6", middleware.RoleUser))
	assert.Equal(t, 0, count(t, "?minCapacity=7", middleware.RoleUser))
	assert.Equal(t, 0, count(t, "?facilities=projector,%20whiteboard", middleware.RoleUser))

	w := ts.do(t, http.MethodGet, "/api/v1/rooms?minCapacity=many", "alice", middleware.RoleUser, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/admin/rooms/"+ts.roomID, "root", middleware.RoleAdmin, map[string]interface{}{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, 0, count(t, "", middleware.RoleUser))
	assert.Equal(t, 0, count(t, "?includeInactive=true", middleware.RoleUser))
	assert.Equal(t, 1, count(t, "?includeInactive=true", middleware.RoleAdmin))
}
