package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// ClassEventHandler exposes the events teachers post for a class.
type ClassEventHandler struct {
	service *service.ClassEventService
	streams *StreamRegistry
}

// NewClassEventHandler constructs the handler.
func NewClassEventHandler(svc *service.ClassEventService, streams *StreamRegistry) *ClassEventHandler {
	return &ClassEventHandler{service: svc, streams: streams}
}

func (h *ClassEventHandler) list(c *gin.Context, upcoming bool) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q models.ClassEventQuery
	if !bindQuery(c, &q) {
		return
	}
	fetch := h.service.ForClass
	if upcoming {
		fetch = h.service.Upcoming
	}
	items, err := fetch(c.Request.Context(), session, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}

// List godoc
// @Summary Active events of a class
// @Description Newest first. Students always get their own class.
// @Tags ClassEvents
// @Produce json
// @Param class query string false "Class"
// @Param search query string false "Title or description search"
// @Success 200 {object} response.Envelope
// @Router /class-events [get]
func (h *ClassEventHandler) List(c *gin.Context) { h.list(c, false) }

// Upcoming godoc
// @Summary Events that have not started yet
// @Tags ClassEvents
// @Produce json
// @Param class query string false "Class"
// @Success 200 {object} response.Envelope
// @Router /class-events/upcoming [get]
func (h *ClassEventHandler) Upcoming(c *gin.Context) { h.list(c, true) }

// Mine godoc
// @Summary Events posted by the caller
// @Tags ClassEvents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /class-events/mine [get]
func (h *ClassEventHandler) Mine(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.Mine(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}

// Stream godoc
// @Summary Live events of a class
// @Tags ClassEvents
// @Produce text/event-stream
// @Param class query string false "Class"
// @Router /class-events/stream [get]
func (h *ClassEventHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q models.ClassEventQuery
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
// @Summary Get a class event
// @Tags ClassEvents
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /class-events/{id} [get]
func (h *ClassEventHandler) Get(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Create godoc
// @Summary Post a class event
// @Tags ClassEvents
// @Accept json
// @Produce json
// @Param payload body models.ClassEventInput true "Event"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /class-events [post]
func (h *ClassEventHandler) Create(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.ClassEventInput
	if !bindJSON(c, &in, "invalid class event payload") {
		return
	}
	item, err := h.service.Create(c.Request.Context(), session, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update a class event
// @Description Only the author or an admin may change an event.
// @Tags ClassEvents
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body models.ClassEventInput true "Event"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /class-events/{id} [put]
func (h *ClassEventHandler) Update(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.ClassEventInput
	if !bindJSON(c, &in, "invalid class event payload") {
		return
	}
	item, err := h.service.Update(c.Request.Context(), session, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Delete godoc
// @Summary Delete a class event
// @Tags ClassEvents
// @Param id path string true "Event ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /class-events/{id} [delete]
func (h *ClassEventHandler) Delete(c *gin.Context) {
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
