package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// GradeHandler exposes exam mark entry and report cards.
type GradeHandler struct {
	service *service.GradeService
	streams *StreamRegistry
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(svc *service.GradeService, streams *StreamRegistry) *GradeHandler {
	return &GradeHandler{service: svc, streams: streams}
}

// Sheet godoc
// @Summary Grade sheet of a class
// @Description One row per student, sorted by roll number, with ranks by percentage.
// @Tags Grades
// @Produce json
// @Param class query string true "Class"
// @Param exam_type query string true "FA1..FA4, SA1, SA2"
// @Param academic_year query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades/sheet [get]
func (h *GradeHandler) Sheet(c *gin.Context) {
	var q models.GradeSheetQuery
	if !bindQuery(c, &q) {
		return
	}
	sheet, err := h.service.Sheet(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sheet)
}

// SaveSheet godoc
// @Summary Save marks for a class
// @Description Every row is checked before anything is written. Blank marks are skipped.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.GradeSheetInput true "Grade sheet"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades/sheet [post]
func (h *GradeHandler) SaveSheet(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.GradeSheetInput
	if !bindJSON(c, &in, "invalid grade sheet payload") {
		return
	}
	saved, err := h.service.SaveSheet(c.Request.Context(), session, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, saved, map[string]interface{}{"count": len(saved)})
}

// Record godoc
// @Summary Save the marks of one student
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body models.GradeRecordInput true "Marks"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades/record [put]
func (h *GradeHandler) Record(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.GradeRecordInput
	if !bindJSON(c, &in, "invalid grade payload") {
		return
	}
	g, err := h.service.Record(c.Request.Context(), session, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, g)
}

// Stream godoc
// @Summary Live grades of a class
// @Tags Grades
// @Produce text/event-stream
// @Param class query string true "Class"
// @Param exam_type query string true "Exam"
// @Param academic_year query string true "Academic year"
// @Router /grades/stream [get]
func (h *GradeHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q models.GradeSheetQuery
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

// Delete godoc
// @Summary Delete a grade record
// @Tags Grades
// @Param id path string true "Grade ID"
// @Success 204 {object} response.Envelope
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Mine godoc
// @Summary Report card of the calling student
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades/mine [get]
func (h *GradeHandler) Mine(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	grades, err := h.service.Mine(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, map[string]interface{}{"count": len(grades)})
}
