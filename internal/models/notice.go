package models

import "time"

// NoticeStatus is the approval state of a notice.
type NoticeStatus string

const (
	NoticeDraft    NoticeStatus = "draft"
	NoticePending  NoticeStatus = "pending"
	NoticeApproved NoticeStatus = "approved"
	NoticeRejected NoticeStatus = "rejected"
)

// NoticePriority orders notices on the board.
type NoticePriority string

const (
	NoticePriorityLow    NoticePriority = "low"
	NoticePriorityNormal NoticePriority = "normal"
	NoticePriorityHigh   NoticePriority = "high"
)

// NoticeAllClasses targets every class.
const NoticeAllClasses = "all"

// Notice is a board announcement that admins approve before students see it.
type Notice struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	TargetClass string         `json:"target_class"`
	Priority    NoticePriority `json:"priority"`
	Status      NoticeStatus   `json:"status"`
	AuthorID    string         `json:"author_id"`
	AuthorName  string         `json:"author_name"`
	ReviewedBy  string         `json:"reviewed_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (n Notice) EntityID() string { return n.ID }

// TargetsClass reports whether students of className are in the audience.
func (n Notice) TargetsClass(className string) bool {
	return n.TargetClass == "" || n.TargetClass == NoticeAllClasses || n.TargetClass == className
}

// NoticeInput is the notice form payload.
type NoticeInput struct {
	Title       string         `json:"title" validate:"notblank"`
	Content     string         `json:"content" validate:"notblank"`
	TargetClass string         `json:"target_class"`
	Priority    NoticePriority `json:"priority" validate:"omitempty,oneof=low normal high"`
	Draft       bool           `json:"draft"`
}

// ReviewInput approves or rejects a pending record.
type ReviewInput struct {
	Approve bool   `json:"approve"`
	Remarks string `json:"remarks"`
}
