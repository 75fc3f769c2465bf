package repository

import (
	"context"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/pkg/docstore"
)

// GradeRepository stores one grade document per student, exam and year.
type GradeRepository struct {
	*Collection[models.StudentGrade]
}

// NewGradeRepository binds the student_grades collection.
func NewGradeRepository(gw docstore.Gateway) *GradeRepository {
	return &GradeRepository{Collection: NewCollection[models.StudentGrade](gw, models.CollectionGrades)}
}

func sheetConditions(q models.GradeSheetQuery) []docstore.Condition {
	return []docstore.Condition{
		docstore.Where("class_name", q.ClassName),
		docstore.Where("exam_type", string(q.ExamType)),
		docstore.Where("academic_year", q.AcademicYear),
	}
}

// ForSheet returns the grades of one class for one exam and year.
func (r *GradeRepository) ForSheet(ctx context.Context, q models.GradeSheetQuery) ([]models.StudentGrade, error) {
	return r.Query(ctx, sheetConditions(q)...)
}

// SubscribeSheet streams the grades of one class for one exam and year.
func (r *GradeRepository) SubscribeSheet(ctx context.Context, q models.GradeSheetQuery) (*Stream[models.StudentGrade], error) {
	return r.Subscribe(ctx, sheetConditions(q)...)
}

// ForStudent returns every saved exam of one student.
func (r *GradeRepository) ForStudent(ctx context.Context, studentID string) ([]models.StudentGrade, error) {
	return r.Query(ctx, docstore.Where("student_id", studentID))
}
