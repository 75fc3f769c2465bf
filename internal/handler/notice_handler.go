package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// NoticeHandler exposes the notice board and its approval workflow.
type NoticeHandler struct {
	service *service.NoticeService
	streams *StreamRegistry
}

// NewNoticeHandler constructs the handler.
func NewNoticeHandler(svc *service.NoticeService, streams *StreamRegistry) *NoticeHandler {
	return &NoticeHandler{service: svc, streams: streams}
}

// List godoc
// @Summary List notices visible to the caller
// @Description Newest first. Admins filter by status (default pending); others see approved notices plus their own.
// @Tags Notices
// @Produce json
// @Param search query string false "Title search"
// @Param class query string false "Target class selector"
// @Param status query string false "Status (admin only)"
// @Success 200 {object} response.Envelope
// @Router /notices [get]
func (h *NoticeHandler) List(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.NoticeQuery
	if !bindQuery(c, &q) {
		return
	}
	notices, err := h.service.List(c.Request.Context(), session, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notices, map[string]interface{}{"count": len(notices)})
}

// Stream godoc
// @Summary Live notice board
// @Tags Notices
// @Produce text/event-stream
// @Param status query string false "Status (admin only)"
// @Router /notices/stream [get]
func (h *NoticeHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.NoticeQuery
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

// Create godoc
// @Summary Post a notice
// @Description Admin notices are approved at once; teacher and staff notices wait for review.
// @Tags Notices
// @Accept json
// @Produce json
// @Param payload body models.NoticeInput true "Notice"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notices [post]
func (h *NoticeHandler) Create(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.NoticeInput
	if !bindJSON(c, &in, "invalid notice payload") {
		return
	}
	notice, err := h.service.Create(c.Request.Context(), session, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, notice)
}

// Update godoc
// @Summary Edit a notice
// @Tags Notices
// @Accept json
// @Produce json
// @Param id path string true "Notice ID"
// @Param payload body models.NoticeInput true "Notice"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notices/{id} [put]
func (h *NoticeHandler) Update(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.NoticeInput
	if !bindJSON(c, &in, "invalid notice payload") {
		return
	}
	notice, err := h.service.Update(c.Request.Context(), session, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, notice)
}

// Review godoc
// @Summary Approve or reject a notice
// @Tags Notices
// @Accept json
// @Produce json
// @Param id path string true "Notice ID"
// @Param payload body models.ReviewInput true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notices/{id}/review [post]
func (h *NoticeHandler) Review(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.ReviewInput
	if !bindJSON(c, &in, "invalid review payload") {
		return
	}
	notice, err := h.service.Review(c.Request.Context(), session, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, notice)
}

// Delete godoc
// @Summary Delete a notice
// @Tags Notices
// @Param id path string true "Notice ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notices/{id} [delete]
func (h *NoticeHandler) Delete(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), session, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
