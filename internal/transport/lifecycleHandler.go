package transport

import (
	"context"
	"net/http"

	"github.com/ds124wfegd/roombooker/internal/service"
	"github.com/gin-gonic/gin"
)

// SweepRunner runs a lifecycle sweep on demand under the worker's
// overlap guard.
type SweepRunner interface {
	RunNoShowCheck(ctx context.Context) (*service.SweepResult, error)
	RunCompletionCheck(ctx context.Context) (*service.SweepResult, error)
}

type LifecycleHandler struct {
	runner SweepRunner
}

func NewLifecycleHandler(runner SweepRunner) *LifecycleHandler {
	return &LifecycleHandler{runner: runner}
}

func (h *LifecycleHandler) RunNoShowCheck(c *gin.Context) {
	h.respond(c, h.runner.RunNoShowCheck)
}

func (h *LifecycleHandler) RunCompletionCheck(c *gin.Context) {
	h.respond(c, h.runner.RunCompletionCheck)
}

func (h *LifecycleHandler) respond(c *gin.Context, run func(context.Context) (*service.SweepResult, error)) {
	result, err := run(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Sweep finished",
		Data:    result,
	})
}
