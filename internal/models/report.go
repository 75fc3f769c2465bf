package models

import "time"

// ReportKind enumerates the downloadable reports.
type ReportKind string

const (
	ReportFees       ReportKind = "fees"
	ReportTimetable  ReportKind = "timetable"
	ReportAttendance ReportKind = "attendance"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ExportRequest selects a report and its filters.
type ExportRequest struct {
	Kind      ReportKind   `json:"kind" validate:"required,oneof=fees timetable attendance"`
	Format    ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	ClassName string       `json:"class_name"`
	Status    FeeStatus    `json:"status" validate:"omitempty,oneof=Pending Paid"`
	Date      string       `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ExportResult describes a rendered report available for download.
type ExportResult struct {
	ID        string       `json:"id"`
	Kind      ReportKind   `json:"kind"`
	Format    ReportFormat `json:"format"`
	Rows      int          `json:"rows"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// DashboardSummary aggregates counts for the admin home screen.
type DashboardSummary struct {
	Students       int       `json:"students"`
	Teachers       int       `json:"teachers"`
	Staff          int       `json:"staff"`
	PendingFees    int       `json:"pending_fees"`
	PendingAmount  float64   `json:"pending_amount"`
	PendingNotices int       `json:"pending_notices"`
	PendingLeaves  int       `json:"pending_leaves"`
	GeneratedAt    time.Time `json:"generated_at"`
}
