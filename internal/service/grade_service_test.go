package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

type gradeFixture struct {
	svc    *GradeService
	grades *repository.GradeRepository
	people *repository.PersonRepository
}

func newGradeFixture(t *testing.T) gradeFixture {
	t.Helper()
	gw := docstore.NewMemory()
	people := repository.NewPersonRepository(gw)
	grades := repository.NewGradeRepository(gw)
	ctx := context.Background()
	for _, p := range []models.Person{
		{ID: "s-2", Type: models.PersonStudent, FirstName: "Bola", LastName: "Ade", ClassName: "Class 3", RollNumber: "2"},
		{ID: "s-1", Type: models.PersonStudent, FirstName: "Amina", LastName: "Yusuf", ClassName: "Class 3", RollNumber: "1"},
		{ID: "s-x", Type: models.PersonStudent, FirstName: "Chidi", LastName: "Obi", ClassName: "Class 3"},
		{ID: "s-9", Type: models.PersonStudent, FirstName: "Dara", LastName: "Eze", ClassName: "Class 9", RollNumber: "1"},
	} {
		_, err := people.Create(ctx, p)
		require.NoError(t, err)
	}
	student := models.Person{ID: "s-1", Type: models.PersonStudent, FirstName: "Amina", ClassName: "Class 3"}
	return gradeFixture{
		svc:    NewGradeService(grades, people, stubStudents{student: &student}, nil, nil),
		grades: grades,
		people: people,
	}
}

func fa1Sheet(entries ...models.GradeEntry) models.GradeSheetInput {
	return models.GradeSheetInput{ClassName: "3", ExamType: models.ExamFA1, AcademicYear: " 2025-26 ", ExamDate: "2025-07-15", Entries: entries}
}

func TestGradeServiceSaveSheetComputesTotals(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	saved, err := f.svc.SaveSheet(ctx, teacherSession, fa1Sheet(
		models.GradeEntry{StudentID: "s-1", Marks: map[string]string{"English": "95", "Mathematics": "85", "Hindi": " "}},
		models.GradeEntry{StudentID: "s-2", Marks: map[string]string{"English": ""}},
	))
	require.NoError(t, err)
	require.Len(t, saved, 1)

	g := saved[0]
	assert.Equal(t, "s-1_Class 3_FA1_2025-26", g.ID)
	assert.Equal(t, "Amina Yusuf", g.StudentName)
	assert.Equal(t, "Class 3", g.ClassName)
	assert.Equal(t, "2025-26", g.AcademicYear)
	assert.Len(t, g.Subjects, 2)
	assert.Equal(t, "A+", g.Subjects["English"].Grade)
	assert.Equal(t, 200.0, g.TotalMarks)
	assert.Equal(t, 180.0, g.ObtainedMarks)
	assert.Equal(t, 90.0, g.Percentage)
	assert.Equal(t, "A+", g.Grade)
	assert.Equal(t, teacherSession.UserID, g.CreatedBy)

	stored, err := f.grades.FetchByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Percentage, stored.Percentage)
}

func TestGradeServiceSaveSheetRejectsBadRowsBeforeWriting(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveSheet(ctx, teacherSession, fa1Sheet(
		models.GradeEntry{StudentID: "s-1", Marks: map[string]string{"English": "abc", "Hindi": "101"}},
		models.GradeEntry{StudentID: "s-9", Marks: map[string]string{"English": "50"}},
		models.GradeEntry{StudentID: "s-2", Marks: map[string]string{"English": "70"}},
		models.GradeEntry{StudentID: "s-2", Marks: map[string]string{"English": "71"}},
	))
	appErr := requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, "must be a number", appErr.Details["entries[0].marks.English"])
	assert.Equal(t, "must be between 0 and 100", appErr.Details["entries[0].marks.Hindi"])
	assert.Equal(t, "is not in Class 3", appErr.Details["entries[1].student_id"])
	assert.Equal(t, "is listed twice", appErr.Details["entries[3].student_id"])

	_, err = f.svc.SaveSheet(ctx, teacherSession, fa1Sheet(models.GradeEntry{StudentID: "s-1", Marks: map[string]string{"English": ""}}))
	appErr = requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, "no marks to save", appErr.Details["entries"])

	_, err = f.svc.SaveSheet(ctx, teacherSession, models.GradeSheetInput{ClassName: " ", ExamType: "FA9", AcademicYear: "2025-26"})
	appErr = requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "class_name")
	assert.Contains(t, appErr.Details, "exam_type")
	assert.Contains(t, appErr.Details, "entries")

	all, err := f.grades.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGradeServiceSheetRowsAndRanks(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveSheet(ctx, teacherSession, fa1Sheet(
		models.GradeEntry{StudentID: "s-1", Marks: map[string]string{"English": "60"}},
		models.GradeEntry{StudentID: "s-2", Marks: map[string]string{"English": "80", "Art": "80"}},
		models.GradeEntry{StudentID: "s-x", Marks: map[string]string{"English": "60"}},
	))
	require.NoError(t, err)

	sheet, err := f.svc.Sheet(ctx, models.GradeSheetQuery{ClassName: "Class 3", ExamType: models.ExamFA1, AcademicYear: "2025-26"})
	require.NoError(t, err)
	assert.Equal(t, append(models.DefaultSubjects("Class 3"), "Art"), sheet.Subjects)

	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, []string{"s-1", "s-2", "s-x"}, []string{sheet.Rows[0].StudentID, sheet.Rows[1].StudentID, sheet.Rows[2].StudentID})
	assert.Equal(t, 1, sheet.Rows[1].Rank)
	assert.Equal(t, 2, sheet.Rows[0].Rank)
	assert.Equal(t, 2, sheet.Rows[2].Rank)

	other, err := f.svc.Sheet(ctx, models.GradeSheetQuery{ClassName: "Class 3", ExamType: models.ExamSA1, AcademicYear: "2025-26"})
	require.NoError(t, err)
	require.Len(t, other.Rows, 3)
	assert.Nil(t, other.Rows[0].Grade)
	assert.Zero(t, other.Rows[0].Rank)
}

func TestGradeServiceRecordKeepsCreatedAt(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()
	first := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return first }

	in := models.GradeRecordInput{StudentID: "s-2", ClassName: "Class 3", ExamType: models.ExamFA2, AcademicYear: "2025-26", Marks: map[string]string{"Science": "33"}}
	g, err := f.svc.Record(ctx, teacherSession, in)
	require.NoError(t, err)
	assert.Equal(t, "Bola Ade", g.StudentName)
	assert.Equal(t, "F", g.Grade)

	f.svc.now = func() time.Time { return first.Add(time.Hour) }
	in.Marks = map[string]string{"Science": "75.5"}
	g, err = f.svc.Record(ctx, adminSession, in)
	require.NoError(t, err)
	assert.Equal(t, first, g.CreatedAt)
	assert.Equal(t, first.Add(time.Hour), g.UpdatedAt)
	assert.Equal(t, "B+", g.Grade)

	in.StudentID = "s-9"
	_, err = f.svc.Record(ctx, teacherSession, in)
	appErr := requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, "is not in Class 3", appErr.Details["student_id"])

	in.StudentID = "s-2"
	in.Marks = map[string]string{"Science": "NaN"}
	_, err = f.svc.Record(ctx, teacherSession, in)
	appErr = requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, "must be a number", appErr.Details["marks.Science"])
}

func TestGradeServiceMineOrdersByYearAndExam(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()
	for _, in := range []models.GradeRecordInput{
		{StudentID: "s-1", ClassName: "Class 3", ExamType: models.ExamSA1, AcademicYear: "2025-26", Marks: map[string]string{"English": "70"}},
		{StudentID: "s-1", ClassName: "Class 3", ExamType: models.ExamFA1, AcademicYear: "2025-26", Marks: map[string]string{"English": "80"}},
		{StudentID: "s-1", ClassName: "Class 3", ExamType: models.ExamSA2, AcademicYear: "2024-25", Marks: map[string]string{"English": "90"}},
		{StudentID: "s-2", ClassName: "Class 3", ExamType: models.ExamFA1, AcademicYear: "2025-26", Marks: map[string]string{"English": "50"}},
	} {
		_, err := f.svc.Record(ctx, teacherSession, in)
		require.NoError(t, err)
	}

	mine, err := f.svc.Mine(ctx, studentSession)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, []models.ExamType{models.ExamSA2, models.ExamFA1, models.ExamSA1},
		[]models.ExamType{mine[0].ExamType, mine[1].ExamType, mine[2].ExamType})
}

func TestGradeServiceWatchOptimisticDelete(t *testing.T) {
	f := newGradeFixture(t)
	ctx := context.Background()
	saved, err := f.svc.SaveSheet(ctx, teacherSession, fa1Sheet(
		models.GradeEntry{StudentID: "s-1", Marks: map[string]string{"English": "60"}},
		models.GradeEntry{StudentID: "s-2", Marks: map[string]string{"English": "70"}},
	))
	require.NoError(t, err)

	w, err := f.svc.Watch(ctx, models.GradeSheetQuery{ClassName: "3", ExamType: models.ExamFA1, AcademicYear: "2025-26"})
	require.NoError(t, err)
	defer w.Close()
	nextView(t, w, func(v ListView[models.StudentGrade]) bool { return len(v.Items) == 2 })

	require.NoError(t, w.Remove(ctx, saved[0].ID))
	view := nextView(t, w, func(v ListView[models.StudentGrade]) bool { return len(v.Items) == 1 })
	assert.Equal(t, "s-2", view.Items[0].StudentID)

	_, err = f.grades.FetchByID(ctx, saved[0].ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDefaultSubjectsAndLetterGrades(t *testing.T) {
	assert.Contains(t, models.DefaultSubjects("2nd"), "Environmental Studies")
	assert.Contains(t, models.DefaultSubjects("Class 7"), "Science")
	assert.Contains(t, models.DefaultSubjects("Class 11"), "Physics")
	assert.Contains(t, models.DefaultSubjects("Nursery"), "Physics")

	for pct, want := range map[float64]string{90: "A+", 89.99: "A", 70: "B+", 60: "B", 50: "C+", 40: "C", 35: "D", 34.9: "F"} {
		assert.Equal(t, want, models.LetterGrade(pct), "percentage %v", pct)
	}
}
