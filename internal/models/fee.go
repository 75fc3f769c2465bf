package models

import (
	"encoding/json"
	"fmt"
)

// FeeStatus tracks payment state.
type FeeStatus string

const (
	FeePending FeeStatus = "Pending"
	FeePaid    FeeStatus = "Paid"
)

// FeeTargetKind names the FeeTarget variants.
type FeeTargetKind string

const (
	FeeTargetIndividual FeeTargetKind = "individual"
	FeeTargetClass      FeeTargetKind = "class"
)

// legacyAllStudents is the studentId sentinel older fee records use for class-wide fees.
const legacyAllStudents = "all"

// FeeTarget is either Individual(studentID) or ClassWide(className). The zero value targets nobody.
type FeeTarget struct {
	kind      FeeTargetKind
	studentID string
	className string
}

// Individual targets a single student.
func Individual(studentID string) FeeTarget {
	return FeeTarget{kind: FeeTargetIndividual, studentID: studentID}
}

// ClassWide targets every student of a class.
func ClassWide(className string) FeeTarget {
	return FeeTarget{kind: FeeTargetClass, className: className}
}

func (t FeeTarget) Kind() FeeTargetKind { return t.kind }

// StudentID returns the targeted student for Individual targets.
func (t FeeTarget) StudentID() (string, bool) {
	return t.studentID, t.kind == FeeTargetIndividual
}

// ClassName returns the targeted class for ClassWide targets.
func (t FeeTarget) ClassName() (string, bool) {
	return t.className, t.kind == FeeTargetClass
}

// Label is a short human-readable description used in reports.
func (t FeeTarget) Label() string {
	switch t.kind {
	case FeeTargetIndividual:
		return "student " + t.studentID
	case FeeTargetClass:
		return "all of " + t.className
	default:
		return "-"
	}
}

type feeTargetJSON struct {
	Kind      FeeTargetKind `json:"kind"`
	StudentID string        `json:"student_id,omitempty"`
	ClassName string        `json:"class_name,omitempty"`
}

func (t FeeTarget) MarshalJSON() ([]byte, error) {
	if t.kind == "" {
		return []byte("null"), nil
	}
	return json.Marshal(feeTargetJSON{Kind: t.kind, StudentID: t.studentID, ClassName: t.className})
}

func (t *FeeTarget) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = FeeTarget{}
		return nil
	}
	var raw feeTargetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case FeeTargetIndividual:
		*t = Individual(raw.StudentID)
	case FeeTargetClass:
		*t = ClassWide(raw.ClassName)
	default:
		return fmt.Errorf("unknown fee target kind %q", raw.Kind)
	}
	return nil
}

// Fee is an amount owed by one student or by a whole class.
type Fee struct {
	ID          string    `json:"id"`
	StudentName string    `json:"student_name"`
	Target      FeeTarget `json:"target"`
	Amount      float64   `json:"amount"`
	DueDate     string    `json:"due_date"`
	Status      FeeStatus `json:"status"`
	Description string    `json:"description,omitempty"`
}

func (f Fee) EntityID() string { return f.ID }

// AppliesTo reports whether the student owes this fee.
func (f Fee) AppliesTo(student Person) bool {
	if id, ok := f.Target.StudentID(); ok {
		return id != "" && id == student.ID
	}
	if class, ok := f.Target.ClassName(); ok {
		return class != "" && class == student.ClassName
	}
	return false
}

// ClassLabel returns the class a fee belongs to, when known.
func (f Fee) ClassLabel() string {
	class, _ := f.Target.ClassName()
	return class
}

type feeAlias Fee

// UnmarshalJSON also accepts records written before targets were explicit, where a
// student_id of "all" plus class_name meant a class-wide fee.
func (f *Fee) UnmarshalJSON(data []byte) error {
	var aux struct {
		feeAlias
		LegacyStudentID      string `json:"student_id"`
		LegacyClassName      string `json:"class_name"`
		LegacyCamelStudentID string `json:"studentId"`
		LegacyCamelClassName string `json:"className"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = Fee(aux.feeAlias)
	if f.Target.Kind() != "" {
		return nil
	}
	studentID := firstNonEmpty(aux.LegacyStudentID, aux.LegacyCamelStudentID)
	className := firstNonEmpty(aux.LegacyClassName, aux.LegacyCamelClassName)
	switch {
	case studentID == legacyAllStudents:
		f.Target = ClassWide(className)
	case studentID != "":
		f.Target = Individual(studentID)
	case className != "":
		f.Target = ClassWide(className)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FeeInput is the fee form payload. Amount stays textual so a non-numeric entry can be reported.
type FeeInput struct {
	StudentName string        `json:"student_name" validate:"notblank"`
	Amount      string        `json:"amount" validate:"notblank,numeric"`
	DueDate     string        `json:"due_date" validate:"notblank,datetime=2006-01-02"`
	Description string        `json:"description"`
	TargetKind  FeeTargetKind `json:"target_kind" validate:"required,oneof=individual class"`
	StudentID   string        `json:"student_id" validate:"required_if=TargetKind individual"`
	ClassName   string        `json:"class_name" validate:"required_if=TargetKind class"`
	Status      FeeStatus     `json:"status" validate:"omitempty,oneof=Pending Paid"`
}
