package models

// Schedule is a one-off event for a class, distinct from the recurring timetable.
type Schedule struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ClassName     string `json:"class_name"`
	RecipientType string `json:"recipient_type,omitempty"`
	Status        string `json:"status,omitempty"`
}

func (s Schedule) EntityID() string { return s.ID }

// Default schedule status for newly created events.
const ScheduleStatusScheduled = "scheduled"

// ScheduleInput is the schedule form payload.
type ScheduleInput struct {
	Title         string `json:"title" validate:"notblank"`
	Description   string `json:"description" validate:"notblank"`
	Date          string `json:"date" validate:"notblank,datetime=2006-01-02"`
	Time          string `json:"time" validate:"notblank"`
	ClassName     string `json:"class_name" validate:"notblank"`
	RecipientType string `json:"recipient_type"`
	Status        string `json:"status"`
}
