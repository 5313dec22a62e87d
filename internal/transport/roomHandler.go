package transport

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/internal/service"
	"github.com/ds124wfegd/roombooker/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	roomService service.RoomService
}

func NewRoomHandler(roomService service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// ListRooms accepts ?minCapacity=&location=&facilities=a,b. Inactive rooms
// are listed only for admins asking with ?includeInactive=true.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	filter := entity.RoomFilter{
		Location:        strings.TrimSpace(c.Query("location")),
		IncludeInactive: c.Query("includeInactive") == "true" && middleware.IsAdmin(c),
	}
	if raw := c.Query("minCapacity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, fmt.Errorf("%w: minCapacity must be an integer", entity.ErrInvalidInput))
			return
		}
		filter.MinCapacity = n
	}
	for _, f := range strings.Split(c.Query("facilities"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			filter.Facilities = append(filter.Facilities, f)
		}
	}

	rooms, err := h.roomService.ListRooms(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: rooms})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: room})
}

// GetAvailability defaults to today (UTC) when ?date is omitted.
func (h *RoomHandler) GetAvailability(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(c, fmt.Errorf("%w: date must be YYYY-MM-DD", entity.ErrInvalidInput))
			return
		}
		date = parsed
	}

	availability, err := h.roomService.GetAvailability(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: availability})
}

// Административные операции

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "Room created",
		Data:    room,
	})
}

func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	var req service.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	room, err := h.roomService.UpdateRoom(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Room updated",
		Data:    room,
	})
}
