package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// TimetableHandler exposes the weekly timetable.
type TimetableHandler struct {
	service *service.TimetableService
	streams *StreamRegistry
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService, streams *StreamRegistry) *TimetableHandler {
	return &TimetableHandler{service: svc, streams: streams}
}

// List godoc
// @Summary List timetable slots
// @Description Ordered by day and slot start time.
// @Tags Timetables
// @Produce json
// @Param class query string false "Class selector"
// @Param day query string false "Weekday"
// @Param teacher query string false "Teacher name"
// @Param search query string false "Subject or teacher search"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var q service.TimetableQuery
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}

// Stream godoc
// @Summary Live timetable
// @Tags Timetables
// @Produce text/event-stream
// @Param class query string false "Class selector"
// @Param day query string false "Weekday"
// @Router /timetables/stream [get]
func (h *TimetableHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.TimetableQuery
	if !bindQuery(c, &q) {
		return
	}
	watch, err := h.service.Watch(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveStream(c, h.streams, session, watch)
}

// Get godoc
// @Summary Get a timetable slot
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Create godoc
// @Summary Create a timetable slot
// @Description Fails with 409 when an active slot already occupies the same class, day and time.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body models.TimetableInput true "Timetable"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var in models.TimetableInput
	if !bindJSON(c, &in, "invalid timetable payload") {
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
// @Summary Update a timetable slot
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body models.TimetableInput true "Timetable"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	var in models.TimetableInput
	if !bindJSON(c, &in, "invalid timetable payload") {
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
// @Summary Delete a timetable slot
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204 {object} response.Envelope
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
