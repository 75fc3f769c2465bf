package models

import "time"

// LeaveStatus is the review state of a leave application.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// LeaveApplication is a teacher or staff request for time off.
type LeaveApplication struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	UserType     PersonType  `json:"user_type"`
	UserName     string      `json:"user_name"`
	FromDate     string      `json:"from_date"`
	ToDate       string      `json:"to_date"`
	Reason       string      `json:"reason"`
	Status       LeaveStatus `json:"status"`
	AppliedAt    time.Time   `json:"applied_at"`
	ReviewedBy   string      `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time  `json:"reviewed_at,omitempty"`
	AdminRemarks string      `json:"admin_remarks,omitempty"`
}

func (l LeaveApplication) EntityID() string { return l.ID }

// LeaveInput is the leave application form payload.
type LeaveInput struct {
	FromDate string `json:"from_date" validate:"notblank,datetime=2006-01-02"`
	ToDate   string `json:"to_date" validate:"notblank,datetime=2006-01-02"`
	Reason   string `json:"reason" validate:"notblank"`
}
