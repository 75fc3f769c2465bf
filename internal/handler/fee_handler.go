package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// FeeHandler exposes fee management and the student fee view.
type FeeHandler struct {
	service *service.FeeService
	streams *StreamRegistry
}

// NewFeeHandler constructs the handler.
func NewFeeHandler(svc *service.FeeService, streams *StreamRegistry) *FeeHandler {
	return &FeeHandler{service: svc, streams: streams}
}

// List godoc
// @Summary List fees
// @Description Sorted by due date. The status selector accepts Pending, Paid or "All Classes".
// @Tags Fees
// @Produce json
// @Param search query string false "Student name search"
// @Param status query string false "Status selector"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	var q service.FeeQuery
	if !bindQuery(c, &q) {
		return
	}
	fees, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, map[string]interface{}{"count": len(fees)})
}

// Stream godoc
// @Summary Live fee list
// @Tags Fees
// @Produce text/event-stream
// @Param search query string false "Student name search"
// @Param status query string false "Status selector"
// @Router /fees/stream [get]
func (h *FeeHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.FeeQuery
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

// Mine godoc
// @Summary Fees owed by the calling student
// @Description Individual fees for the student plus class-wide fees for their class.
// @Tags Fees
// @Produce json
// @Param status query string false "Status selector"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /fees/mine [get]
func (h *FeeHandler) Mine(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.FeeQuery
	if !bindQuery(c, &q) {
		return
	}
	fees, err := h.service.StudentFees(c.Request.Context(), session, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, map[string]interface{}{"count": len(fees)})
}

// Get godoc
// @Summary Get a fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	fee, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, fee)
}

// Create godoc
// @Summary Create a fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body models.FeeInput true "Fee"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees [post]
func (h *FeeHandler) Create(c *gin.Context) {
	var in models.FeeInput
	if !bindJSON(c, &in, "invalid fee payload") {
		return
	}
	fee, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fee)
}

// Update godoc
// @Summary Update a fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body models.FeeInput true "Fee"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/{id} [put]
func (h *FeeHandler) Update(c *gin.Context) {
	var in models.FeeInput
	if !bindJSON(c, &in, "invalid fee payload") {
		return
	}
	fee, err := h.service.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, fee)
}

// MarkPaid godoc
// @Summary Mark a fee as paid
// @Tags Fees
// @Param id path string true "Fee ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/{id}/paid [post]
func (h *FeeHandler) MarkPaid(c *gin.Context) {
	if err := h.service.MarkPaid(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a fee
// @Tags Fees
// @Param id path string true "Fee ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/{id} [delete]
func (h *FeeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
