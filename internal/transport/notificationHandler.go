package transport

import (
	"context"
	"net/http"

	"github.com/ds124wfegd/roombooker/internal/transport/middleware"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionServer serves a websocket notification session.
type SessionServer interface {
	ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string, admin bool) error
}

type NotificationHandler struct {
	sessions SessionServer
	// ctx outlives the request so sessions end on shutdown, not on the
	// request timeout.
	ctx context.Context
}

func NewNotificationHandler(ctx context.Context, sessions SessionServer) *NotificationHandler {
	return &NotificationHandler{sessions: sessions, ctx: ctx}
}

func (h *NotificationHandler) Connect(c *gin.Context) {
	if err := h.sessions.ServeWS(h.ctx, c.Writer, c.Request, middleware.UserID(c), middleware.IsAdmin(c)); err != nil {
		logrus.WithError(err).Warn("Websocket connection rejected")
	}
}
