package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// ScheduleHandler exposes one-off school events.
type ScheduleHandler struct {
	service *service.ScheduleService
	streams *StreamRegistry
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(svc *service.ScheduleService, streams *StreamRegistry) *ScheduleHandler {
	return &ScheduleHandler{service: svc, streams: streams}
}

// List godoc
// @Summary List schedules
// @Description Sorted by date then time. Students only see their own class.
// @Tags Schedules
// @Produce json
// @Param search query string false "Title search"
// @Param class query string false "Class selector"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.service.List(c.Request.Context(), session, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}

// Stream godoc
// @Summary Live schedule list
// @Tags Schedules
// @Produce text/event-stream
// @Param search query string false "Title search"
// @Param class query string false "Class selector"
// @Router /schedules/stream [get]
func (h *ScheduleHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.ListQuery
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

// Get godoc
// @Summary Get a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Create godoc
// @Summary Create a schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body models.ScheduleInput true "Schedule"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var in models.ScheduleInput
	if !bindJSON(c, &in, "invalid schedule payload") {
		return
	}
	item, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update a schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body models.ScheduleInput true "Schedule"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var in models.ScheduleInput
	if !bindJSON(c, &in, "invalid schedule payload") {
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Delete godoc
// @Summary Delete a schedule
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204 {object} response.Envelope
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
