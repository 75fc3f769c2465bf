package models

import (
	"strings"
	"time"
)

// Weekday is a school day.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
)

// SchoolDays lists the weekdays in timetable order.
var SchoolDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// ParseWeekday accepts full or three-letter day names in any case.
func ParseWeekday(raw string) (Weekday, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", false
	}
	for _, d := range SchoolDays {
		full := strings.ToLower(string(d))
		if value == full || value == full[:3] {
			return d, true
		}
	}
	return "", false
}

// Index returns the position of the day within the school week, or -1.
func (d Weekday) Index() int {
	for i, day := range SchoolDays {
		if day == d {
			return i
		}
	}
	return -1
}

// Timetable is one recurring lesson slot.
type Timetable struct {
	ID         string  `json:"id"`
	ClassGrade string  `json:"class_grade"`
	DayOfWeek  Weekday `json:"day_of_week"`
	TimeSlot   string  `json:"time_slot"`
	Subject    string  `json:"subject"`
	Teacher    string  `json:"teacher"`
	RoomNumber string  `json:"room_number,omitempty"`
	IsActive   bool    `json:"is_active"`
}

func (t Timetable) EntityID() string { return t.ID }

var slotLayouts = []string{"3:04 PM", "03:04 PM", "3:04PM", "15:04", "3:04"}

// SlotStart parses the start of a slot such as "09:00 AM - 10:00 AM" or "13:30-14:15"
// into an offset from midnight.
func SlotStart(slot string) (time.Duration, bool) {
	start := strings.TrimSpace(slot)
	if idx := strings.Index(start, "-"); idx >= 0 {
		start = strings.TrimSpace(start[:idx])
	}
	start = strings.ToUpper(start)
	for _, layout := range slotLayouts {
		if t, err := time.Parse(layout, start); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
		}
	}
	return 0, false
}

// TimetableInput is the timetable form payload.
type TimetableInput struct {
	ClassGrade string `json:"class_grade" validate:"notblank"`
	DayOfWeek  string `json:"day_of_week" validate:"notblank"`
	TimeSlot   string `json:"time_slot" validate:"notblank"`
	Subject    string `json:"subject" validate:"notblank"`
	Teacher    string `json:"teacher" validate:"notblank"`
	RoomNumber string `json:"room_number"`
	IsActive   *bool  `json:"is_active"`
}
