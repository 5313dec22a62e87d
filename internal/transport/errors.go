package transport

import (
	"errors"
	"net/http"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SuccessResponse представляет успешный ответ
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorKind struct {
	target error
	status int
	kind   string
}

var errorKinds = []errorKind{
	{entity.ErrRoomNotFound, http.StatusNotFound, "not_found"},
	{entity.ErrReservationNotFound, http.StatusNotFound, "not_found"},
	{entity.ErrAccessNotFound, http.StatusNotFound, "not_found"},
	{entity.ErrForbidden, http.StatusForbidden, "forbidden"},
	{entity.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{entity.ErrInvalidTime, http.StatusBadRequest, "invalid_time"},
	{entity.ErrInvalidDuration, http.StatusBadRequest, "invalid_duration"},
	{entity.ErrCapacityExceeded, http.StatusBadRequest, "capacity_exceeded"},
	{entity.ErrOperatingHours, http.StatusBadRequest, "operating_hours_violation"},
	{entity.ErrMissingReason, http.StatusBadRequest, "missing_reason"},
	{entity.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{entity.ErrConflict, http.StatusConflict, "conflict"},
	{entity.ErrInvalidState, http.StatusBadRequest, "invalid_state"},
	{entity.ErrTooLate, http.StatusBadRequest, "too_late"},
	{entity.ErrTooEarly, http.StatusBadRequest, "too_early"},
	{entity.ErrAccessExpired, http.StatusBadRequest, "expired"},
	{entity.ErrSweepInProgress, http.StatusConflict, "sweep_in_progress"},
}

func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

// respondError writes the error envelope. Internal errors are logged and
// their text is not exposed.
func respondError(c *gin.Context, err error) {
	status, kind := classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed with internal error")
		message = "internal server error"
	}

	c.Error(err)
	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   kind,
		Message: message,
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   "invalid_input",
		Message: err.Error(),
	})
}
