package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/service"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/response"
)

const photoFormField = "photo"

// PersonHandler serves one person collection. Students, teachers and staff each get their own instance.
type PersonHandler struct {
	service    *service.PersonService
	personType models.PersonType
	streams    *StreamRegistry
}

// NewPersonHandler constructs a handler bound to one person type.
func NewPersonHandler(svc *service.PersonService, personType models.PersonType, streams *StreamRegistry) *PersonHandler {
	return &PersonHandler{service: svc, personType: personType, streams: streams}
}

// List godoc
// @Summary List people of one type
// @Description Case-insensitive search over first name, last name and email. The class selector applies to students; "All Classes" matches everyone.
// @Tags People
// @Produce json
// @Param type path string true "students, teachers or staff"
// @Param search query string false "Search text"
// @Param class query string false "Class selector"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /{type} [get]
func (h *PersonHandler) List(c *gin.Context) {
	var q service.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	people, err := h.service.List(c.Request.Context(), h.personType, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, people, map[string]interface{}{"count": len(people)})
}

// Stream godoc
// @Summary Live list of people of one type
// @Description Server-sent events. The open event carries the stream id; every view event carries status, items, pending ids and errors.
// @Tags People
// @Produce text/event-stream
// @Param type path string true "students, teachers or staff"
// @Param search query string false "Search text"
// @Param class query string false "Class selector"
// @Router /{type}/stream [get]
func (h *PersonHandler) Stream(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var q service.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	watch, err := h.service.Watch(c.Request.Context(), h.personType, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveStream(c, h.streams, session, watch)
}

// Get godoc
// @Summary Get one person
// @Tags People
// @Produce json
// @Param type path string true "students, teachers or staff"
// @Param id path string true "Person ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /{type}/{id} [get]
func (h *PersonHandler) Get(c *gin.Context) {
	person, err := h.service.Get(c.Request.Context(), h.personType, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, person)
}

// Me godoc
// @Summary Get the caller's own profile
// @Tags People
// @Produce json
// @Param type path string true "students, teachers or staff"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /{type}/me [get]
func (h *PersonHandler) Me(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if t, hasProfile := session.Role.PersonType(); !hasProfile || t != h.personType {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "profile belongs to another collection"))
		return
	}
	person, err := h.service.Me(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, person)
}

// Create godoc
// @Summary Create a person
// @Tags People
// @Accept json
// @Produce json
// @Param type path string true "students, teachers or staff"
// @Param payload body models.PersonInput true "Person"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /{type} [post]
func (h *PersonHandler) Create(c *gin.Context) {
	var in models.PersonInput
	if !bindJSON(c, &in, "invalid "+string(h.personType)+" payload") {
		return
	}
	person, err := h.service.Create(c.Request.Context(), h.personType, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, person)
}

// Update godoc
// @Summary Update a person
// @Tags People
// @Accept json
// @Produce json
// @Param type path string true "students, teachers or staff"
// @Param id path string true "Person ID"
// @Param payload body models.PersonInput true "Person"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /{type}/{id} [put]
func (h *PersonHandler) Update(c *gin.Context) {
	var in models.PersonInput
	if !bindJSON(c, &in, "invalid "+string(h.personType)+" payload") {
		return
	}
	person, err := h.service.Update(c.Request.Context(), h.personType, c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, person)
}

// Delete godoc
// @Summary Delete a person
// @Tags People
// @Param type path string true "students, teachers or staff"
// @Param id path string true "Person ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /{type}/{id} [delete]
func (h *PersonHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), h.personType, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadPhoto godoc
// @Summary Upload a profile photo
// @Tags People
// @Accept multipart/form-data
// @Produce json
// @Param type path string true "students, teachers or staff"
// @Param id path string true "Person ID"
// @Param photo formData file true "JPEG, PNG or WebP image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /{type}/{id}/photo [post]
func (h *PersonHandler) UploadPhoto(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile(photoFormField)
	if err != nil {
		response.Error(c, appErrors.Validation("photo is required", map[string]string{photoFormField: "is required"}))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	path, err := h.service.UploadPhoto(c.Request.Context(), session, h.personType, c.Param("id"), header.Header.Get("Content-Type"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"profile_photo": path})
}
