package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/ecorvi/schmng-api/internal/models"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/response"
	"github.com/ecorvi/schmng-api/pkg/storage"
)

type exportService interface {
	Generate(ctx context.Context, session models.Session, req models.ExportRequest) (*models.ExportResult, error)
	Open(token string) (*os.File, storage.Grant, error)
}

var exportContentTypes = map[string]string{
	".csv": "text/csv; charset=utf-8",
	".pdf": "application/pdf",
}

// ExportHandler renders reports and serves signed downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Generate godoc
// @Summary Render a report
// @Description Returns a signed download URL that stops working once it expires.
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body models.ExportRequest true "Report selection"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Generate(c *gin.Context) {
	var req models.ExportRequest
	if !bindJSON(c, &req, "invalid export request") {
		return
	}
	h.generate(c, req)
}

// FeeReport godoc
// @Summary Render the fee report
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body models.ExportRequest true "Format and filters; kind is fixed to fees"
// @Success 201 {object} response.Envelope
// @Router /fees/export [post]
func (h *ExportHandler) FeeReport(c *gin.Context) {
	var req models.ExportRequest
	if !bindJSON(c, &req, "invalid export request") {
		return
	}
	req.Kind = models.ReportFees
	h.generate(c, req)
}

func (h *ExportHandler) generate(c *gin.Context, req models.ExportRequest) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Generate(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a rendered report
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token from the export URL"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, grant, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	name := path.Base(grant.Path)
	contentType, ok := exportContentTypes[path.Ext(name)]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
		"Cache-Control":       "private, no-store",
	})
}
