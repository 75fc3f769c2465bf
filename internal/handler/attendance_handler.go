package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	"github.com/ecorvi/schmng-api/pkg/response"
)

// AttendanceHandler exposes daily attendance sheets.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

type attendanceDayQuery struct {
	PersonType string `form:"person_type"`
	Date       string `form:"date"`
	Class      string `form:"class"`
}

type attendanceSummaryQuery struct {
	PersonType string `form:"person_type"`
	Month      string `form:"month"`
}

func personTypeOrStudent(raw string) models.PersonType {
	if raw == "" {
		return models.PersonStudent
	}
	return models.PersonType(raw)
}

// Mark godoc
// @Summary Mark attendance for a day
// @Description Re-marking the same person on the same day overwrites the earlier mark.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.AttendanceInput true "Sheet"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var in models.AttendanceInput
	if !bindJSON(c, &in, "invalid attendance payload") {
		return
	}
	records, err := h.service.Mark(c.Request.Context(), session, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, records)
}

// ForDate godoc
// @Summary Attendance marks for one day
// @Tags Attendance
// @Produce json
// @Param person_type query string false "student (default), teacher or staff"
// @Param date query string true "yyyy-MM-dd"
// @Param class query string false "Class selector"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) ForDate(c *gin.Context) {
	var q attendanceDayQuery
	if !bindQuery(c, &q) {
		return
	}
	records, err := h.service.ForDate(c.Request.Context(), personTypeOrStudent(q.PersonType), q.Date, q.Class)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, map[string]interface{}{"count": len(records)})
}

// Summary godoc
// @Summary Monthly attendance counts per person
// @Tags Attendance
// @Produce json
// @Param person_type query string false "student (default), teacher or staff"
// @Param month query string true "yyyy-MM"
// @Success 200 {object} response.Envelope
// @Router /attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	var q attendanceSummaryQuery
	if !bindQuery(c, &q) {
		return
	}
	summary, err := h.service.MonthlySummary(c.Request.Context(), personTypeOrStudent(q.PersonType), q.Month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
