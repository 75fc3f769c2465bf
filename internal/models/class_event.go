package models

import "time"

// EventStatus tracks a class event through its life.
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

// Event priorities and kinds.
const (
	EventPriorityNormal = "normal"
	EventTypeGeneral    = "general"
)

// ClassEvent is an announcement a teacher posts for one class, such as a test or a trip.
type ClassEvent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	EventDate   time.Time   `json:"event_date"`
	TargetClass string      `json:"target_class"`
	CreatedBy   string      `json:"created_by"`
	Priority    string      `json:"priority"`
	Type        string      `json:"type"`
	Status      EventStatus `json:"status"`
	Attachments []string    `json:"attachments,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (e ClassEvent) EntityID() string { return e.ID }

// ClassEventInput is the class event form payload. EventDate is RFC 3339.
type ClassEventInput struct {
	Title       string      `json:"title" validate:"notblank"`
	Description string      `json:"description"`
	EventDate   string      `json:"event_date" validate:"notblank,datetime=2006-01-02T15:04:05Z07:00"`
	TargetClass string      `json:"target_class" validate:"notblank"`
	Priority    string      `json:"priority" validate:"omitempty,oneof=normal important urgent"`
	Type        string      `json:"type" validate:"omitempty,oneof=general exam activity holiday"`
	Status      EventStatus `json:"status" validate:"omitempty,oneof=active cancelled completed"`
	Attachments []string    `json:"attachments" validate:"omitempty,dive,url"`
}

// ClassEventQuery selects the events of one class.
type ClassEventQuery struct {
	Class  string `form:"class"`
	Search string `form:"search"`
}
