package models

// AttendanceOption is the mark recorded for one person on one day.
type AttendanceOption string

const (
	AttendancePresent    AttendanceOption = "Present"
	AttendanceAbsent     AttendanceOption = "Absent"
	AttendancePermission AttendanceOption = "Permission"
)

// AttendanceRecord is keyed by date, person type and person id so re-marking overwrites.
type AttendanceRecord struct {
	ID         string           `json:"id"`
	PersonID   string           `json:"person_id"`
	PersonType PersonType       `json:"person_type"`
	ClassName  string           `json:"class_name,omitempty"`
	Date       string           `json:"date"`
	Option     AttendanceOption `json:"option"`
	MarkedBy   string           `json:"marked_by,omitempty"`
}

func (a AttendanceRecord) EntityID() string { return a.ID }

// AttendanceKey builds the record id for a person on a date.
func AttendanceKey(date string, personType PersonType, personID string) string {
	return date + "_" + string(personType) + "_" + personID
}

// AttendanceEntry is one row of an attendance sheet submission.
type AttendanceEntry struct {
	PersonID string           `json:"person_id" validate:"notblank"`
	Option   AttendanceOption `json:"option" validate:"required,oneof=Present Absent Permission"`
}

// AttendanceInput marks a whole sheet for one day.
type AttendanceInput struct {
	PersonType PersonType        `json:"person_type" validate:"required,oneof=student teacher staff"`
	Date       string            `json:"date" validate:"notblank,datetime=2006-01-02"`
	ClassName  string            `json:"class_name"`
	Entries    []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceSummary counts marks per option for one person over a period.
type AttendanceSummary struct {
	PersonID   string `json:"person_id"`
	Present    int    `json:"present"`
	Absent     int    `json:"absent"`
	Permission int    `json:"permission"`
}
