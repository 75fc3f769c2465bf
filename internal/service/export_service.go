package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/export"
	"github.com/ecorvi/schmng-api/pkg/jobs"
	"github.com/ecorvi/schmng-api/pkg/storage"
)

// JobExportCleanup is the job type purging expired export files.
const JobExportCleanup = "exports.cleanup"

type exportFees interface {
	FetchAll(ctx context.Context) ([]models.Fee, error)
}

type exportTimetables interface {
	FetchAll(ctx context.Context) ([]models.Timetable, error)
}

type exportAttendance interface {
	ForDate(ctx context.Context, personType models.PersonType, date string) ([]models.AttendanceRecord, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(age time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	Retention time.Duration
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Fees       exportFees
	Timetables exportTimetables
	Attendance exportAttendance
	Storage    fileStorage
	Signer     *storage.SignedURLSigner
	CSV        csvRenderer
	PDF        pdfRenderer
	Validator  *validator.Validate
	Logger     *zap.Logger
	Config     ExportConfig
}

// ExportService renders report datasets and hands out signed download links.
type ExportService struct {
	fees       exportFees
	timetables exportTimetables
	attendance exportAttendance
	storage    fileStorage
	signer     *storage.SignedURLSigner
	csv        csvRenderer
	pdf        pdfRenderer
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	cfg := params.Config
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	s := &ExportService{
		fees:       params.Fees,
		timetables: params.Timetables,
		attendance: params.Attendance,
		storage:    params.Storage,
		signer:     params.Signer,
		csv:        params.CSV,
		pdf:        params.PDF,
		validator:  params.Validator,
		logger:     params.Logger,
		cfg:        cfg,
	}
	if s.csv == nil {
		s.csv = export.NewCSVExporter()
	}
	if s.pdf == nil {
		s.pdf = export.NewPDFExporter()
	}
	if s.validator == nil {
		s.validator = viewstate.NewValidator()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Generate renders the requested report and stores it for download.
func (s *ExportService) Generate(ctx context.Context, session models.Session, req models.ExportRequest) (*models.ExportResult, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if err := viewstate.Validate(s.validator, req, "invalid export request"); err != nil {
		return nil, err
	}

	dataset, title, err := s.buildDataset(ctx, req)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch req.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", req.Format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	relPath, err := s.storage.Save(fmt.Sprintf("exports/%s-%s.%s", req.Kind, id, req.Format), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Sign(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	s.logger.Info("export generated",
		zap.String("id", id),
		zap.String("kind", string(req.Kind)),
		zap.String("format", string(req.Format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &models.ExportResult{
		ID:        id,
		Kind:      req.Kind,
		Format:    req.Format,
		Rows:      len(dataset.Rows),
		URL:       fmt.Sprintf("%s/exports/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open verifies a download token and opens the file it grants.
func (s *ExportService) Open(token string) (*os.File, storage.Grant, error) {
	grant, err := s.signer.Verify(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, grant, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, grant, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	f, err := s.storage.Open(grant.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, grant, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, grant, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return f, grant, nil
}

// Cleanup removes exports older than the retention window.
func (s *ExportService) Cleanup(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	removed, err := s.storage.CleanupOlderThan(s.cfg.Retention)
	if err != nil {
		return removed, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}

// CleanupHandler adapts Cleanup to the job queue.
func (s *ExportService) CleanupHandler() jobs.Handler {
	return func(ctx context.Context, _ jobs.Job) error {
		_, err := s.Cleanup(ctx)
		return err
	}
}

func (s *ExportService) buildDataset(ctx context.Context, req models.ExportRequest) (export.Dataset, string, error) {
	switch req.Kind {
	case models.ReportFees:
		return s.buildFeeDataset(ctx, req)
	case models.ReportTimetable:
		return s.buildTimetableDataset(ctx, req)
	case models.ReportAttendance:
		return s.buildAttendanceDataset(ctx, req)
	default:
		return export.Dataset{}, "", appErrors.Validation("invalid export request", map[string]string{"kind": "is not supported"})
	}
}

func (s *ExportService) buildFeeDataset(ctx context.Context, req models.ExportRequest) (export.Dataset, string, error) {
	fees, err := s.fees.FetchAll(ctx)
	if err != nil {
		return export.Dataset{}, "", gatewayError(err, feeNotFound)
	}
	sort.SliceStable(fees, func(i, j int) bool { return fees[i].DueDate < fees[j].DueDate })

	rows := make([]map[string]string, 0, len(fees))
	var total float64
	for _, f := range fees {
		if req.Status != "" && f.Status != req.Status {
			continue
		}
		if req.ClassName != "" && !models.MatchesClass(req.ClassName, f.ClassLabel()) {
			continue
		}
		total += f.Amount
		rows = append(rows, map[string]string{
			"Student":  f.StudentName,
			"Target":   f.Target.Label(),
			"Amount":   strconv.FormatFloat(f.Amount, 'f', 2, 64),
			"Due Date": f.DueDate,
			"Status":   string(f.Status),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student", "Target", "Amount", "Due Date", "Status"},
		Rows:    rows,
		Footer:  []map[string]string{{"Student": "Total", "Amount": strconv.FormatFloat(total, 'f', 2, 64)}},
	}
	return dataset, "Fee Report", nil
}

func (s *ExportService) buildTimetableDataset(ctx context.Context, req models.ExportRequest) (export.Dataset, string, error) {
	entries, err := s.timetables.FetchAll(ctx)
	if err != nil {
		return export.Dataset{}, "", gatewayError(err, timetableNotFound)
	}
	sort.SliceStable(entries, func(i, j int) bool { return lessBySlot(entries[i], entries[j]) })

	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsActive || !models.MatchesClass(req.ClassName, e.ClassGrade) {
			continue
		}
		rows = append(rows, map[string]string{
			"Class":   e.ClassGrade,
			"Day":     string(e.DayOfWeek),
			"Slot":    e.TimeSlot,
			"Subject": e.Subject,
			"Teacher": e.Teacher,
			"Room":    e.RoomNumber,
		})
	}
	title := "Timetable"
	if req.ClassName != "" {
		title = "Timetable " + req.ClassName
	}
	return export.Dataset{
		Headers: []string{"Class", "Day", "Slot", "Subject", "Teacher", "Room"},
		Rows:    rows,
	}, title, nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, req models.ExportRequest) (export.Dataset, string, error) {
	if req.Date == "" {
		return export.Dataset{}, "", appErrors.Validation("invalid export request", map[string]string{"date": "is required"})
	}
	records, err := s.attendance.ForDate(ctx, models.PersonStudent, req.Date)
	if err != nil {
		return export.Dataset{}, "", gatewayError(err, "attendance not found")
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].PersonID < records[j].PersonID })

	rows := make([]map[string]string, 0, len(records))
	counts := map[models.AttendanceOption]int{}
	for _, rec := range records {
		if !models.MatchesClass(req.ClassName, rec.ClassName) {
			continue
		}
		counts[rec.Option]++
		rows = append(rows, map[string]string{
			"Student": rec.PersonID,
			"Class":   rec.ClassName,
			"Status":  string(rec.Option),
		})
	}
	return export.Dataset{
		Headers: []string{"Student", "Class", "Status"},
		Rows:    rows,
		Footer: []map[string]string{
			{"Student": "Present", "Status": strconv.Itoa(counts[models.AttendancePresent])},
			{"Student": "Absent", "Status": strconv.Itoa(counts[models.AttendanceAbsent])},
			{"Student": "Permission", "Status": strconv.Itoa(counts[models.AttendancePermission])},
		},
	}, "Attendance " + req.Date, nil
}
