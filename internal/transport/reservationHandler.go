package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/internal/service"
	"github.com/ds124wfegd/roombooker/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	reservationService service.ReservationService
}

func NewReservationHandler(reservationService service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// CancelReservationRequest представляет запрос на отмену бронирования
type CancelReservationRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var req service.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	reservation, err := h.reservationService.CreateReservation(c.Request.Context(), &req, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "Reservation created",
		Data:    reservation,
	})
}

func (h *ReservationHandler) GetUserReservations(c *gin.Context) {
	reservations, err := h.reservationService.GetUserReservations(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	page, meta := paginate(c, reservations)
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    page,
		Meta:    meta,
	})
}

func (h *ReservationHandler) GetReservation(c *gin.Context) {
	reservation, err := h.reservationService.GetReservation(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: reservation})
}

func (h *ReservationHandler) UpdateReservation(c *gin.Context) {
	var req service.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	reservation, err := h.reservationService.UpdateReservation(c.Request.Context(), c.Param("id"), &req, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Reservation updated",
		Data:    reservation,
	})
}

func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	var req CancelReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	reservation, err := h.reservationService.CancelReservation(c.Request.Context(), c.Param("id"), req.Reason, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Reservation cancelled",
		Data:    reservation,
	})
}

func (h *ReservationHandler) ConfirmReservation(c *gin.Context) {
	reservation, err := h.reservationService.ConfirmReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Reservation confirmed",
		Data:    reservation,
	})
}

func (h *ReservationHandler) GetRoomReservations(c *gin.Context) {
	reservations, err := h.reservationService.GetRoomReservations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	page, meta := paginate(c, reservations)
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    page,
		Meta:    meta,
	})
}

// ListReservations filters by ?status=&roomId=&userId=&from=&to= (RFC3339,
// matched on start time) and pages in the store.
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	limit, offset := pageParams(c)
	filter := entity.ReservationFilter{
		Status: entity.ReservationStatus(c.Query("status")),
		RoomID: c.Query("roomId"),
		UserID: c.Query("userId"),
		Limit:  limit,
		Offset: offset,
	}

	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		respondError(c, err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		respondError(c, err)
		return
	}

	reservations, total, err := h.reservationService.ListReservations(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservations,
		Meta:    pageMeta(total, limit, offset, len(reservations)),
	})
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", entity.ErrInvalidInput, key)
	}
	t = t.UTC()
	return &t, nil
}
