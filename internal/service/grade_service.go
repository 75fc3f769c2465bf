package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecorvi/schmng-api/internal/models"
	"github.com/ecorvi/schmng-api/internal/repository"
	"github.com/ecorvi/schmng-api/internal/viewstate"
	"github.com/ecorvi/schmng-api/pkg/docstore"
	appErrors "github.com/ecorvi/schmng-api/pkg/errors"
)

const (
	gradeNotFound     = "grade not found"
	gradeSheetMessage = "invalid grade sheet"
)

type gradeRepository interface {
	ForSheet(ctx context.Context, q models.GradeSheetQuery) ([]models.StudentGrade, error)
	SubscribeSheet(ctx context.Context, q models.GradeSheetQuery) (*repository.Stream[models.StudentGrade], error)
	ForStudent(ctx context.Context, studentID string) ([]models.StudentGrade, error)
	FetchByID(ctx context.Context, id string) (*models.StudentGrade, error)
	Set(ctx context.Context, g models.StudentGrade) error
	Delete(ctx context.Context, id string) error
}

type classRoster interface {
	ListByClass(ctx context.Context, className string) ([]models.Person, error)
}

// GradeService runs the mark entry sheet of a class and the per-student results view.
type GradeService struct {
	repo      gradeRepository
	roster    classRoster
	students  studentLookup
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	round     func(float64) float64
}

// NewGradeService constructs GradeService.
func NewGradeService(repo gradeRepository, roster classRoster, students studentLookup, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = viewstate.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		repo:      repo,
		roster:    roster,
		students:  students,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		round:     func(v float64) float64 { return math.RoundToEven(v*100) / 100 },
	}
}

func (s *GradeService) normalizeQuery(q models.GradeSheetQuery) (models.GradeSheetQuery, error) {
	if err := viewstate.Validate(s.validator, q, "invalid grade sheet query"); err != nil {
		return q, err
	}
	q.ClassName = models.NormalizeClassName(q.ClassName)
	q.AcademicYear = strings.TrimSpace(q.AcademicYear)
	return q, nil
}

func (s *GradeService) listConfig(q models.GradeSheetQuery) viewstate.ListConfig[models.StudentGrade] {
	return viewstate.ListConfig[models.StudentGrade]{
		Projector: viewstate.Projector[models.StudentGrade]{
			SearchFields: func(g models.StudentGrade) []string { return []string{g.StudentName, g.Grade} },
			ClassOf:      func(g models.StudentGrade) string { return g.ClassName },
			Less:         func(a, b models.StudentGrade) bool { return a.StudentName < b.StudentName },
		},
		Fetch: func(ctx context.Context) ([]models.StudentGrade, error) { return s.repo.ForSheet(ctx, q) },
		Subscribe: subscribeWith(func(ctx context.Context) (*repository.Stream[models.StudentGrade], error) {
			return s.repo.SubscribeSheet(ctx, q)
		}),
		Delete: s.repo.Delete,
		Logger: s.logger,
	}
}

// classStudents returns the students of className ordered by roll number. Roll numbers
// that are not numeric sort last.
func (s *GradeService) classStudents(ctx context.Context, className string) ([]models.Person, error) {
	students, err := s.roster.ListByClass(ctx, className)
	if err != nil {
		return nil, gatewayError(err, "class not found")
	}
	sort.SliceStable(students, func(i, j int) bool {
		ri, rj := rollOrder(students[i]), rollOrder(students[j])
		if ri != rj {
			return ri < rj
		}
		return students[i].FullName() < students[j].FullName()
	})
	return students, nil
}

func rollOrder(p models.Person) int {
	n, err := strconv.Atoi(strings.TrimSpace(p.RollNumber))
	if err != nil {
		return math.MaxInt
	}
	return n
}

// Sheet returns the entry grid: one row per student of the class with their saved marks,
// and the subject columns (the class defaults plus any subject already graded).
func (s *GradeService) Sheet(ctx context.Context, q models.GradeSheetQuery) (*models.GradeSheet, error) {
	q, err := s.normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	students, err := s.classStudents(ctx, q.ClassName)
	if err != nil {
		return nil, err
	}
	grades, err := fetchList(ctx, s.listConfig(q), viewstate.Filter{}, gradeNotFound)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string]*models.StudentGrade, len(grades))
	for i := range grades {
		byStudent[grades[i].StudentID] = &grades[i]
	}
	ranks := rankByPercentage(grades)

	rows := make([]models.GradeRow, 0, len(students))
	for _, st := range students {
		row := models.GradeRow{StudentID: st.ID, StudentName: st.FullName(), RollNumber: st.RollNumber}
		if g, ok := byStudent[st.ID]; ok {
			row.Grade = g
			row.Rank = ranks[st.ID]
		}
		rows = append(rows, row)
	}
	return &models.GradeSheet{
		ClassName:    q.ClassName,
		ExamType:     q.ExamType,
		AcademicYear: q.AcademicYear,
		Subjects:     sheetSubjects(q.ClassName, grades),
		Rows:         rows,
	}, nil
}

// rankByPercentage assigns competition ranks: equal percentages share a rank and the next
// rank skips accordingly.
func rankByPercentage(grades []models.StudentGrade) map[string]int {
	sorted := make([]models.StudentGrade, len(grades))
	copy(sorted, grades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Percentage > sorted[j].Percentage })
	ranks := make(map[string]int, len(sorted))
	for i, g := range sorted {
		if i > 0 && g.Percentage == sorted[i-1].Percentage {
			ranks[g.StudentID] = ranks[sorted[i-1].StudentID]
			continue
		}
		ranks[g.StudentID] = i + 1
	}
	return ranks
}

func sheetSubjects(className string, grades []models.StudentGrade) []string {
	subjects := models.DefaultSubjects(className)
	seen := make(map[string]bool, len(subjects))
	for _, name := range subjects {
		seen[name] = true
	}
	var extra []string
	for _, g := range grades {
		for name := range g.Subjects {
			if !seen[name] {
				seen[name] = true
				extra = append(extra, name)
			}
		}
	}
	sort.Strings(extra)
	return append(subjects, extra...)
}

// SaveSheet validates every row before writing any. Blank marks are skipped; a student whose
// marks are all blank keeps their earlier grades.
func (s *GradeService) SaveSheet(ctx context.Context, session models.Session, in models.GradeSheetInput) ([]models.StudentGrade, error) {
	if err := viewstate.Validate(s.validator, in, gradeSheetMessage); err != nil {
		return nil, err
	}
	q, err := s.normalizeQuery(in.Query())
	if err != nil {
		return nil, err
	}
	students, err := s.classStudents(ctx, q.ClassName)
	if err != nil {
		return nil, err
	}
	roster := make(map[string]models.Person, len(students))
	for _, st := range students {
		roster[st.ID] = st
	}
	saved, err := s.repo.ForSheet(ctx, q)
	if err != nil {
		return nil, gatewayError(err, gradeNotFound)
	}
	existing := make(map[string]*models.StudentGrade, len(saved))
	for i := range saved {
		existing[saved[i].ID] = &saved[i]
	}

	problems := map[string]string{}
	seen := make(map[string]bool, len(in.Entries))
	pending := make([]models.StudentGrade, 0, len(in.Entries))
	for i, entry := range in.Entries {
		field := "entries[" + strconv.Itoa(i) + "]"
		id := strings.TrimSpace(entry.StudentID)
		student, ok := roster[id]
		switch {
		case !ok:
			problems[field+".student_id"] = "is not in " + q.ClassName
			continue
		case seen[id]:
			problems[field+".student_id"] = "is listed twice"
			continue
		}
		seen[id] = true
		subjects, bad := parseMarks(entry.Marks, field+".marks")
		for k, v := range bad {
			problems[k] = v
		}
		if len(subjects) == 0 {
			continue
		}
		key := models.GradeKey(student.ID, q.ClassName, q.ExamType, q.AcademicYear)
		pending = append(pending, s.compose(existing[key], q, student, in.ExamDate, subjects, session.UserID))
	}
	if len(problems) > 0 {
		return nil, appErrors.Validation(gradeSheetMessage, problems)
	}
	if len(pending) == 0 {
		return nil, appErrors.Validation(gradeSheetMessage, map[string]string{"entries": "no marks to save"})
	}
	for _, g := range pending {
		if err := s.repo.Set(ctx, g); err != nil {
			return nil, gatewayError(err, gradeNotFound)
		}
	}
	s.logger.Info("grade sheet saved",
		zap.String("class", q.ClassName),
		zap.String("exam", string(q.ExamType)),
		zap.String("year", q.AcademicYear),
		zap.Int("students", len(pending)),
	)
	return pending, nil
}

// Record saves the marks of one student through the form controller. Validation happens
// before any read; the roster check and the earlier record are resolved at save time.
func (s *GradeService) Record(ctx context.Context, session models.Session, in models.GradeRecordInput) (*models.StudentGrade, error) {
	g, err := submitForm(ctx, s.logger, in, s.recordBuilder(session), s.saveRecord, gradeNotFound)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GradeService) recordBuilder(session models.Session) func(models.GradeRecordInput) (models.StudentGrade, error) {
	return func(in models.GradeRecordInput) (models.StudentGrade, error) {
		if err := viewstate.Validate(s.validator, in, gradeSheetMessage); err != nil {
			return models.StudentGrade{}, err
		}
		subjects, problems := parseMarks(in.Marks, "marks")
		if len(problems) > 0 {
			return models.StudentGrade{}, appErrors.Validation(gradeSheetMessage, problems)
		}
		if len(subjects) == 0 {
			return models.StudentGrade{}, appErrors.Validation(gradeSheetMessage, map[string]string{"marks": "no marks to save"})
		}
		q := models.GradeSheetQuery{
			ClassName:    models.NormalizeClassName(in.ClassName),
			ExamType:     in.ExamType,
			AcademicYear: strings.TrimSpace(in.AcademicYear),
		}
		student := models.Person{ID: strings.TrimSpace(in.StudentID)}
		return s.compose(nil, q, student, in.ExamDate, subjects, session.UserID), nil
	}
}

func (s *GradeService) saveRecord(ctx context.Context, g models.StudentGrade) (models.StudentGrade, error) {
	students, err := s.classStudents(ctx, g.ClassName)
	if err != nil {
		return g, err
	}
	found := false
	for _, st := range students {
		if st.ID == g.StudentID {
			g.StudentName = st.FullName()
			found = true
			break
		}
	}
	if !found {
		return g, appErrors.Validation(gradeSheetMessage, map[string]string{"student_id": "is not in " + g.ClassName})
	}
	existing, err := s.repo.FetchByID(ctx, g.ID)
	switch {
	case err == nil:
		g.CreatedAt = existing.CreatedAt
	case !errors.Is(err, docstore.ErrNotFound):
		return g, err
	}
	return g, s.repo.Set(ctx, g)
}

// parseMarks converts typed marks into subject grades. Blank marks are skipped; anything
// else must be a number between 0 and the subject maximum.
func parseMarks(raw map[string]string, field string) (map[string]models.SubjectGrade, map[string]string) {
	grades := make(map[string]models.SubjectGrade, len(raw))
	problems := map[string]string{}
	for subject, text := range raw {
		name := strings.TrimSpace(subject)
		key := field + "." + subject
		if name == "" {
			problems[key] = "subject name is required"
			continue
		}
		value := strings.TrimSpace(text)
		if value == "" {
			continue
		}
		mark, err := strconv.ParseFloat(value, 64)
		switch {
		case err != nil, math.IsNaN(mark):
			problems[key] = "must be a number"
		case mark < 0 || mark > models.MaxSubjectMarks:
			problems[key] = "must be between 0 and 100"
		default:
			grades[name] = models.SubjectGrade{
				SubjectName:   name,
				MaxMarks:      models.MaxSubjectMarks,
				ObtainedMarks: mark,
				Grade:         models.LetterGrade(mark / models.MaxSubjectMarks * 100),
			}
		}
	}
	return grades, problems
}

func (s *GradeService) compose(existing *models.StudentGrade, q models.GradeSheetQuery, student models.Person, examDate string, subjects map[string]models.SubjectGrade, savedBy string) models.StudentGrade {
	now := s.now()
	g := models.StudentGrade{
		ID:           models.GradeKey(student.ID, q.ClassName, q.ExamType, q.AcademicYear),
		StudentID:    student.ID,
		StudentName:  student.FullName(),
		ClassName:    q.ClassName,
		AcademicYear: q.AcademicYear,
		ExamType:     q.ExamType,
		ExamDate:     examDate,
		Subjects:     subjects,
		CreatedBy:    savedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, sg := range subjects {
		g.TotalMarks += sg.MaxMarks
		g.ObtainedMarks += sg.ObtainedMarks
	}
	if g.TotalMarks > 0 {
		g.Percentage = s.round(g.ObtainedMarks / g.TotalMarks * 100)
	}
	g.Grade = models.LetterGrade(g.Percentage)
	if existing != nil {
		g.CreatedAt = existing.CreatedAt
	}
	return g
}

// Watch opens the live grade list of one sheet.
func (s *GradeService) Watch(ctx context.Context, q models.GradeSheetQuery) (*ListWatch[models.StudentGrade], error) {
	q, err := s.normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	return watchList(ctx, s.listConfig(q), viewstate.Filter{}, gradeNotFound)
}

// Delete removes one saved grade document.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return gatewayError(err, gradeNotFound)
	}
	return nil
}

// Mine returns the calling student's results, ordered by year and then exam.
func (s *GradeService) Mine(ctx context.Context, session models.Session) ([]models.StudentGrade, error) {
	student, err := s.students.CurrentStudent(ctx, session)
	if err != nil {
		return nil, err
	}
	cfg := viewstate.ListConfig[models.StudentGrade]{
		Projector: viewstate.Projector[models.StudentGrade]{
			Less: func(a, b models.StudentGrade) bool {
				if a.AcademicYear != b.AcademicYear {
					return a.AcademicYear < b.AcademicYear
				}
				return a.ExamType.Order() < b.ExamType.Order()
			},
		},
		Fetch:  func(ctx context.Context) ([]models.StudentGrade, error) { return s.repo.ForStudent(ctx, student.ID) },
		Logger: s.logger,
	}
	return fetchList(ctx, cfg, viewstate.Filter{}, gradeNotFound)
}
