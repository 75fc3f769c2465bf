package models

import (
	"strconv"
	"strings"
	"time"
)

// ExamType names an assessment in the school year: four formative, two summative.
type ExamType string

const (
	ExamFA1 ExamType = "FA1"
	ExamFA2 ExamType = "FA2"
	ExamFA3 ExamType = "FA3"
	ExamFA4 ExamType = "FA4"
	ExamSA1 ExamType = "SA1"
	ExamSA2 ExamType = "SA2"
)

// ExamTypes lists the assessments in calendar order.
var ExamTypes = []ExamType{ExamFA1, ExamFA2, ExamFA3, ExamFA4, ExamSA1, ExamSA2}

// Order returns the position of e in the school year, or len(ExamTypes) when unknown.
func (e ExamType) Order() int {
	for i, t := range ExamTypes {
		if t == e {
			return i
		}
	}
	return len(ExamTypes)
}

// MaxSubjectMarks is the ceiling for every subject mark.
const MaxSubjectMarks = 100.0

var (
	primarySubjects         = []string{"English", "Mathematics", "Hindi", "Environmental Studies", "Telugu"}
	secondarySubjects       = []string{"English", "Mathematics", "Hindi", "Science", "Social Studies", "Telugu"}
	higherSecondarySubjects = []string{"English", "Mathematics", "Physics", "Chemistry", "Biology", "Social Studies", "Telugu"}
)

// DefaultSubjects returns the standard subject list for a class: primary up to Class 5,
// secondary up to Class 9, higher secondary above that or for unnumbered classes.
func DefaultSubjects(className string) []string {
	var list []string
	n, err := strconv.Atoi(strings.TrimPrefix(NormalizeClassName(className), classPrefix))
	switch {
	case err != nil:
		list = higherSecondarySubjects
	case n <= 5:
		list = primarySubjects
	case n <= 9:
		list = secondarySubjects
	default:
		list = higherSecondarySubjects
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// LetterGrade maps a percentage onto the grading scale.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B+"
	case percentage >= 60:
		return "B"
	case percentage >= 50:
		return "C+"
	case percentage >= 40:
		return "C"
	case percentage >= 35:
		return "D"
	default:
		return "F"
	}
}

// SubjectGrade is the mark of one subject in one exam.
type SubjectGrade struct {
	SubjectName   string  `json:"subject_name"`
	MaxMarks      float64 `json:"max_marks"`
	ObtainedMarks float64 `json:"obtained_marks"`
	Grade         string  `json:"grade"`
	Remarks       string  `json:"remarks,omitempty"`
}

// StudentGrade holds every subject mark of one student for one exam. The id is derived
// from student, class, exam and year so re-entering a sheet overwrites earlier marks.
type StudentGrade struct {
	ID            string                  `json:"id"`
	StudentID     string                  `json:"student_id"`
	StudentName   string                  `json:"student_name"`
	ClassName     string                  `json:"class_name"`
	AcademicYear  string                  `json:"academic_year"`
	ExamType      ExamType                `json:"exam_type"`
	ExamDate      string                  `json:"exam_date,omitempty"`
	Subjects      map[string]SubjectGrade `json:"subjects"`
	TotalMarks    float64                 `json:"total_marks"`
	ObtainedMarks float64                 `json:"obtained_marks"`
	Percentage    float64                 `json:"percentage"`
	Grade         string                  `json:"grade"`
	CreatedBy     string                  `json:"created_by,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func (g StudentGrade) EntityID() string { return g.ID }

// GradeKey builds the stored id of a student's grades for an exam.
func GradeKey(studentID, className string, exam ExamType, academicYear string) string {
	return studentID + "_" + NormalizeClassName(className) + "_" + string(exam) + "_" + strings.TrimSpace(academicYear)
}

// GradeSheetQuery selects one class, exam and year.
type GradeSheetQuery struct {
	ClassName    string   `form:"class" json:"class_name" validate:"notblank"`
	ExamType     ExamType `form:"exam_type" json:"exam_type" validate:"required,oneof=FA1 FA2 FA3 FA4 SA1 SA2"`
	AcademicYear string   `form:"academic_year" json:"academic_year" validate:"notblank"`
}

// GradeEntry is one student row of a grade sheet. Marks maps subject to the typed mark;
// blank marks are left out.
type GradeEntry struct {
	StudentID string            `json:"student_id" validate:"notblank"`
	Marks     map[string]string `json:"marks"`
}

// GradeSheetInput submits marks for a whole class at once.
type GradeSheetInput struct {
	ClassName    string       `json:"class_name" validate:"notblank"`
	ExamType     ExamType     `json:"exam_type" validate:"required,oneof=FA1 FA2 FA3 FA4 SA1 SA2"`
	AcademicYear string       `json:"academic_year" validate:"notblank"`
	ExamDate     string       `json:"exam_date" validate:"omitempty,datetime=2006-01-02"`
	Entries      []GradeEntry `json:"entries" validate:"required,min=1,dive"`
}

// Query returns the sheet selection of in.
func (in GradeSheetInput) Query() GradeSheetQuery {
	return GradeSheetQuery{ClassName: in.ClassName, ExamType: in.ExamType, AcademicYear: in.AcademicYear}
}

// GradeRecordInput submits the marks of one student.
type GradeRecordInput struct {
	StudentID    string            `json:"student_id" validate:"notblank"`
	ClassName    string            `json:"class_name" validate:"notblank"`
	ExamType     ExamType          `json:"exam_type" validate:"required,oneof=FA1 FA2 FA3 FA4 SA1 SA2"`
	AcademicYear string            `json:"academic_year" validate:"notblank"`
	ExamDate     string            `json:"exam_date" validate:"omitempty,datetime=2006-01-02"`
	Marks        map[string]string `json:"marks" validate:"required,min=1"`
}

// GradeRow pairs a student of the class with their saved grades, if any.
type GradeRow struct {
	StudentID   string        `json:"student_id"`
	StudentName string        `json:"student_name"`
	RollNumber  string        `json:"roll_number,omitempty"`
	Rank        int           `json:"rank,omitempty"`
	Grade       *StudentGrade `json:"grade,omitempty"`
}

// GradeSheet is the mark entry grid of one class for one exam.
type GradeSheet struct {
	ClassName    string     `json:"class_name"`
	ExamType     ExamType   `json:"exam_type"`
	AcademicYear string     `json:"academic_year"`
	Subjects     []string   `json:"subjects"`
	Rows         []GradeRow `json:"rows"`
}
