package server

import (
	"wasteflow/internal/domain"
	"wasteflow/internal/stats"
)

// Request bodies use the camelCase field names the dashboards send.

type MeResponse struct {
	UserID      string   `json:"userId"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Source      string   `json:"source,omitempty"`
}

type CreateReportRequest struct {
	WasteType   string  `json:"wasteType" enum:"plastic,organic,e_waste,metal,glass,mixed"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location,omitempty"`
	WeightKG    float64 `json:"weightKg,omitempty" minimum:"0"`
}

type CreateJobRequest struct {
	Title         string `json:"title" minLength:"1"`
	Description   string `json:"description,omitempty"`
	Category      string `json:"category,omitempty"`
	Location      string `json:"location,omitempty"`
	ScheduledDate string `json:"scheduledDate,omitempty" format:"date-time"`
}

type CreateItemRequest struct {
	Title       string `json:"title" minLength:"1"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	PriceCents  int    `json:"priceCents" minimum:"0"`
}

type CreateApplicationRequest struct {
	FullName string `json:"fullName" minLength:"1"`
	Phone    string `json:"phone,omitempty"`
	Skills   string `json:"skills,omitempty"`
}

type CreateEventRequest struct {
	Title       string `json:"title" minLength:"1"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartsAt    string `json:"startsAt,omitempty" format:"date-time"`
}

type AdminReportActionRequest struct {
	ReportID        string `json:"reportId"`
	Action          string `json:"action" enum:"verify,reject"`
	Points          *int   `json:"points,omitempty" minimum:"0"`
	RejectionReason string `json:"rejectionReason,omitempty"`
	Version         int    `json:"version,omitempty"`
}

type AdminReportsResponse struct {
	Reports       []domain.WasteReport `json:"reports"`
	Stats         stats.ReportStats    `json:"stats"`
	TypeBreakdown map[string]int       `json:"typeBreakdown"`
}

type AdminJobActionRequest struct {
	JobID           string `json:"jobId"`
	Status          string `json:"status" enum:"verified,rejected"`
	AdminNotes      string `json:"adminNotes,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`
	ScheduledDate   string `json:"scheduledDate,omitempty" format:"date-time"`
	Version         int    `json:"version,omitempty"`
}

type AdminEventStatusRequest struct {
	EventID string `json:"eventId"`
	Status  string `json:"status" enum:"upcoming,ongoing,completed"`
	Version int    `json:"version,omitempty"`
}

type MarketplaceVerifyRequest struct {
	Action          string `json:"action" enum:"approve,reject"`
	RejectionReason string `json:"rejectionReason,omitempty"`
	Version         int    `json:"version,omitempty"`
}

type ApplicationActionRequest struct {
	Action          string `json:"action" enum:"verify,reject"`
	RejectionReason string `json:"rejectionReason,omitempty"`
	Version         int    `json:"version,omitempty"`
}

type WorkerJobActionRequest struct {
	JobID   string `json:"jobId"`
	Action  string `json:"action" enum:"accept,start,complete"`
	Version int    `json:"version,omitempty"`
}

type CompleteReportRequest struct {
	ReportID string `json:"reportId"`
	Version  int    `json:"version,omitempty"`
}

type DeleteUserRequest struct {
	UserID string `json:"userId"`
}

type WorkerJobsResponse struct {
	Open []domain.Job `json:"open"`
	Mine []domain.Job `json:"mine"`
}
