package controller

import (
	"context"

	"execoj/internal/common/http/middleware"
	"execoj/internal/execution/scheduler"
	"execoj/internal/execution/validator"
	"execoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ExecutionService is the boundary the controller exposes over HTTP.
type ExecutionService interface {
	Submit(ctx context.Context, payload validator.Payload) (string, error)
	Status(ctx context.Context, id string) (*scheduler.StatusView, error)
	Cancel(ctx context.Context, id string) error
	Stats() scheduler.Stats
}

// SubmitResponse acknowledges an accepted execution.
type SubmitResponse struct {
	RequestID string `json:"requestId"`
}

// CancelResponse confirms a cancellation.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ExecutionController handles execution requests.
type ExecutionController struct {
	svc ExecutionService
}

// NewExecutionController creates a new controller.
func NewExecutionController(svc ExecutionService) *ExecutionController {
	return &ExecutionController{svc: svc}
}

// RegisterRoutes mounts the execution endpoints under group.
func (h *ExecutionController) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/execute", h.Submit)
	group.GET("/execute/stats", h.Stats)
	group.GET("/execute/:id", h.GetStatus)
	group.DELETE("/execute/:id", h.Cancel)
}

// Submit accepts code for asynchronous execution.
func (h *ExecutionController) Submit(c *gin.Context) {
	var payload validator.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	payload.SubmitterID = middleware.SubmitterID(c)

	id, err := h.svc.Submit(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, SubmitResponse{RequestID: id})
}

// GetStatus returns the status of one execution.
func (h *ExecutionController) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid request id")
		return
	}
	view, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Cancel cancels a queued execution.
func (h *ExecutionController) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid request id")
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, CancelResponse{Cancelled: true})
}

// Stats returns queue statistics.
func (h *ExecutionController) Stats(c *gin.Context) {
	response.Success(c, h.svc.Stats())
}
