package transport

import (
	"net/http"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/internal/service"
	"github.com/ds124wfegd/roombooker/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type AccessHandler struct {
	accessService service.AccessService
}

func NewAccessHandler(accessService service.AccessService) *AccessHandler {
	return &AccessHandler{accessService: accessService}
}

type GenerateAccessRequest struct {
	ReservationID string `json:"reservationId" binding:"required"`
	AccessMethod  string `json:"accessMethod" binding:"required"`
}

type VerifyAccessRequest struct {
	AccessToken string `json:"accessToken" binding:"required"`
}

func (h *AccessHandler) GenerateAccessToken(c *gin.Context) {
	var req GenerateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	method, err := entity.ParseAccessMethod(req.AccessMethod)
	if err != nil {
		respondError(c, err)
		return
	}

	access, err := h.accessService.GenerateAccessToken(c.Request.Context(), req.ReservationID, method, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Access token issued",
		Data:    access,
	})
}

// VerifyAccessToken answers 200 for every outcome; the body says whether the
// door opens.
func (h *AccessHandler) VerifyAccessToken(c *gin.Context) {
	var req VerifyAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.accessService.VerifyAccessToken(c.Request.Context(), req.AccessToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AccessHandler) GetAccessHistory(c *gin.Context) {
	history, err := h.accessService.GetAccessHistory(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	page, meta := paginate(c, history)
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    page,
		Meta:    meta,
	})
}

func (h *AccessHandler) GetCurrentRoomStatus(c *gin.Context) {
	status, err := h.accessService.GetCurrentRoomStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: status})
}
