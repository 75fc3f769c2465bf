package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
	"github.com/ecorvi/schmng-api/pkg/jobs"
	"github.com/ecorvi/schmng-api/pkg/storage"
)

type exportFixture struct {
	svc        *ExportService
	root       string
	fees       *repository.FeeRepository
	timetables *repository.TimetableRepository
	attendance *repository.AttendanceRepository
}

func newExportFixture(t *testing.T, ttl time.Duration) exportFixture {
	t.Helper()
	gw := docstore.NewMemory()
	root := t.TempDir()
	files, err := storage.NewLocalStorage(root)
	require.NoError(t, err)

	f := exportFixture{
		root:       root,
		fees:       repository.NewFeeRepository(gw),
		timetables: repository.NewTimetableRepository(gw),
		attendance: repository.NewAttendanceRepository(gw),
	}
	f.svc = NewExportService(ExportServiceParams{
		Fees:       f.fees,
		Timetables: f.timetables,
		Attendance: f.attendance,
		Storage:    files,
		Signer:     storage.NewSignedURLSigner("export-secret", ttl),
		Config:     ExportConfig{APIPrefix: "/api/v1/"},
	})
	return f
}

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	const prefix = "/api/v1/exports/"
	require.True(t, strings.HasPrefix(url, prefix), url)
	return strings.TrimPrefix(url, prefix)
}

func readCSV(t *testing.T, f *os.File) [][]string {
	t.Helper()
	defer f.Close()
	raw, err := io.ReadAll(f)
	require.NoError(t, err)
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportServiceFeesCSV(t *testing.T) {
	f := newExportFixture(t, time.Hour)
	ctx := context.Background()
	for _, fee := range []models.Fee{
		{StudentName: "Late", Target: models.ClassWide("Class 1"), Amount: 10, DueDate: "2024-07-01", Status: models.FeePending},
		{StudentName: "Early", Target: models.ClassWide("Class 1"), Amount: 12.5, DueDate: "2024-06-01", Status: models.FeePending},
		{StudentName: "Other", Target: models.ClassWide("Class 2"), Amount: 99, DueDate: "2024-05-01", Status: models.FeePending},
		{StudentName: "Settled", Target: models.ClassWide("Class 1"), Amount: 40, DueDate: "2024-04-01", Status: models.FeePaid},
	} {
		_, err := f.fees.Add(ctx, fee)
		require.NoError(t, err)
	}

	res, err := f.svc.Generate(ctx, adminSession, models.ExportRequest{
		Kind: models.ReportFees, Format: models.ReportFormatCSV, ClassName: "Class 1", Status: models.FeePending,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	file, grant, err := f.svc.Open(tokenFromURL(t, res.URL))
	require.NoError(t, err)
	assert.Equal(t, res.ID, grant.ID)
	records := readCSV(t, file)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Student", "Target", "Amount", "Due Date", "Status"}, records[0])
	assert.Equal(t, "Early", records[1][0])
	assert.Equal(t, "Late", records[2][0])
	assert.Equal(t, "Total", records[3][0])
	assert.Equal(t, "22.50", records[3][2])
}

func TestExportServiceTimetablePDF(t *testing.T) {
	f := newExportFixture(t, time.Hour)
	ctx := context.Background()
	_, err := f.timetables.Add(ctx, models.Timetable{ClassGrade: "Class 3", DayOfWeek: "Monday", TimeSlot: "9:00 AM", Subject: "Maths", Teacher: "Ms Lee", IsActive: true})
	require.NoError(t, err)
	_, err = f.timetables.Add(ctx, models.Timetable{ClassGrade: "Class 3", DayOfWeek: "Monday", TimeSlot: "10:00 AM", Subject: "Art", Teacher: "Mr Roy"})
	require.NoError(t, err)

	res, err := f.svc.Generate(ctx, adminSession, models.ExportRequest{Kind: models.ReportTimetable, Format: models.ReportFormatPDF, ClassName: "Class 3"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	file, _, err := f.svc.Open(tokenFromURL(t, res.URL))
	require.NoError(t, err)
	defer file.Close()
	head := make([]byte, 4)
	_, err = io.ReadFull(file, head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(head))
}

func TestExportServiceAttendanceRequiresDate(t *testing.T) {
	f := newExportFixture(t, time.Hour)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, adminSession, models.ExportRequest{Kind: models.ReportAttendance, Format: models.ReportFormatCSV})
	appErr := requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "date")

	_, err = f.attendance.Mark(ctx, models.AttendanceRecord{
		PersonID: "s1", PersonType: models.PersonStudent, ClassName: "Class 1", Date: "2024-05-02", Option: models.AttendanceAbsent,
	})
	require.NoError(t, err)

	res, err := f.svc.Generate(ctx, adminSession, models.ExportRequest{Kind: models.ReportAttendance, Format: models.ReportFormatCSV, Date: "2024-05-02"})
	require.NoError(t, err)
	file, _, err := f.svc.Open(tokenFromURL(t, res.URL))
	require.NoError(t, err)
	records := readCSV(t, file)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"Absent", "", "1"}, records[3])
}

func TestExportServiceRejections(t *testing.T) {
	f := newExportFixture(t, time.Hour)
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, teacherSession, models.ExportRequest{Kind: models.ReportFees, Format: models.ReportFormatCSV})
	requireCode(t, err, appErrors.ErrForbidden.Code)

	_, err = f.svc.Generate(ctx, adminSession, models.ExportRequest{Kind: "grades", Format: models.ReportFormatCSV})
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, _, err = f.svc.Open("garbage")
	requireCode(t, err, appErrors.ErrForbidden.Code)

	res, err := f.svc.Generate(ctx, adminSession, models.ExportRequest{Kind: models.ReportFees, Format: models.ReportFormatCSV})
	require.NoError(t, err)
	token := tokenFromURL(t, res.URL)
	flipped := byte('0')
	if token[len(token)-1] == '0' {
		flipped = '1'
	}
	_, _, err = f.svc.Open(token[:len(token)-1] + string(flipped))
	requireCode(t, err, appErrors.ErrForbidden.Code)

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "exports")))
	_, _, err = f.svc.Open(token)
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestExportServiceExpiredLink(t *testing.T) {
	f := newExportFixture(t, time.Nanosecond)

	res, err := f.svc.Generate(context.Background(), adminSession, models.ExportRequest{Kind: models.ReportFees, Format: models.ReportFormatCSV})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, _, err = f.svc.Open(tokenFromURL(t, res.URL))
	appErr := requireCode(t, err, appErrors.ErrForbidden.Code)
	assert.Equal(t, "download link expired", appErr.Message)
}

func TestExportServiceCleanup(t *testing.T) {
	f := newExportFixture(t, time.Hour)
	f.svc.cfg.Retention = time.Minute

	res, err := f.svc.Generate(context.Background(), adminSession, models.ExportRequest{Kind: models.ReportFees, Format: models.ReportFormatCSV})
	require.NoError(t, err)

	removed, err := f.svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, removed)

	matches, err := filepath.Glob(filepath.Join(f.root, "exports", "*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(matches[0], old, old))

	require.NoError(t, f.svc.CleanupHandler()(context.Background(), jobs.Job{Type: JobExportCleanup}))
	_, _, err = f.svc.Open(tokenFromURL(t, res.URL))
	requireCode(t, err, appErrors.ErrNotFound.Code)
}
