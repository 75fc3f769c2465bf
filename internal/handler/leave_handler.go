package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// LeaveHandler exposes leave applications.
type LeaveHandler struct {
	service *service.LeaveService
	streams *StreamRegistry
}

// NewLeaveHandler constructs the handler.
func NewLeaveHandler(svc *service.LeaveService, streams *StreamRegistry) *LeaveHandler {
	return &LeaveHandler{service: svc, streams: streams}
}

// List godoc
// @Summary List leave applications
// @Description Applicants see their own; admins see all, filtered by status.
// @Tags Leaves
// @Produce json
// @Param status query string false "Status selector"
// @Param search query string false "Reason search"
// @Success 200 {object} response.Envelope
// @Router /leaves [get]
func (h *LeaveHandler) List(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.LeaveQuery
	if !bindQuery(c, &q) {
		return
	}
	leaves, err := h.service.List(c.Request.Context(), session, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leaves, map[string]interface{}{"count": len(leaves)})
}

// Stream godoc
// @Summary Live leave applications
// @Tags Leaves
// @Produce text/event-stream
// @Param status query string false "Status selector"
// @Router /leaves/stream [get]
func (h *LeaveHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.LeaveQuery
	if !bindQuery(c, &q) {
		return
	}
	watch, err := h.service.Watch(c.Request.Context(), session, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveStream(c, h.streams, session, watch)
}

// Apply godoc
// @Summary Apply for leave
// @Tags Leaves
// @Accept json
// @Produce json
// @Param payload body models.LeaveInput true "Leave"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /leaves [post]
func (h *LeaveHandler) Apply(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.LeaveInput
	if !bindJSON(c, &in, "invalid leave payload") {
		return
	}
	leave, err := h.service.Apply(c.Request.Context(), session, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, leave)
}

// Review godoc
// @Summary Approve or reject a leave application
// @Tags Leaves
// @Accept json
// @Produce json
// @Param id path string true "Leave ID"
// @Param payload body models.ReviewInput true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id}/review [post]
func (h *LeaveHandler) Review(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.ReviewInput
	if !bindJSON(c, &in, "invalid review payload") {
		return
	}
	leave, err := h.service.Review(c.Request.Context(), session, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, leave)
}

// Withdraw godoc
// @Summary Withdraw a pending leave application
// @Tags Leaves
// @Param id path string true "Leave ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leaves/{id} [delete]
func (h *LeaveHandler) Withdraw(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Withdraw(c.Request.Context(), session, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
