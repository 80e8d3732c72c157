package workflow

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"wasteflow/internal/domain"
	"wasteflow/internal/events"
	"wasteflow/internal/repo"
)

type ReportCreateOptions struct {
	ReporterID  string
	WasteType   string
	Description string
	Location    string
	WeightKG    float64
}

var wasteTypes = map[string]bool{
	"plastic": true, "organic": true, "e_waste": true,
	"metal": true, "glass": true, "mixed": true,
}

// SubmitReport files a new waste report in pending status.
func (e Engine) SubmitReport(ctx context.Context, opts ReportCreateOptions) (domain.WasteReport, error) {
	if opts.ReporterID == "" {
		return domain.WasteReport{}, validationf("reporter is required")
	}
	if !wasteTypes[opts.WasteType] {
		return domain.WasteReport{}, validationf("unknown waste type %q", opts.WasteType)
	}
	if opts.WeightKG < 0 {
		return domain.WasteReport{}, validationf("weight must be non-negative")
	}
	now := e.nowRFC3339()
	rep := domain.WasteReport{
		ID:          uuid.NewString(),
		ReporterID:  opts.ReporterID,
		WasteType:   opts.WasteType,
		Description: opts.Description,
		Location:    opts.Location,
		WeightKG:    opts.WeightKG,
		Status:      "pending",
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WasteReport{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertReport(ctx, tx, rep); err != nil {
		return domain.WasteReport{}, err
	}
	if err := e.Events.Append(ctx, tx, "report.submit", domain.KindReport, rep.ID, opts.ReporterID, events.Payload{
		"waste_type": rep.WasteType,
		"status":     rep.Status,
	}); err != nil {
		return domain.WasteReport{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WasteReport{}, err
	}
	e.Metrics.Transition(domain.KindReport, "submit")
	return rep, nil
}

type ReportReviewOptions struct {
	ReportID        string
	Action          string // verify | reject
	Points          *int
	RejectionReason string
	ActorID         string
	ExpectedVersion int
}

// ReviewReport verifies or rejects a pending report. Verification awards
// points: the explicit value when given, otherwise the configured default
// for the waste type. Rejection requires a reason.
func (e Engine) ReviewReport(ctx context.Context, opts ReportReviewOptions) (domain.WasteReport, error) {
	var target string
	switch opts.Action {
	case "verify":
		target = "verified"
	case "reject":
		target = "rejected"
	default:
		return domain.WasteReport{}, validationf("unknown report action %q", opts.Action)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WasteReport{}, err
	}
	defer tx.Rollback()

	rep, err := e.Repo.GetReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		return domain.WasteReport{}, err
	}
	if err := checkVersion(domain.KindReport, opts.ExpectedVersion, rep.Version); err != nil {
		e.Metrics.Denied(domain.KindReport, "stale_version")
		return domain.WasteReport{}, err
	}
	if rep.Status == target {
		return rep, nil
	}
	if err := ensureReportTransition(rep.Status, target); err != nil {
		e.Metrics.Denied(domain.KindReport, "illegal_transition")
		return domain.WasteReport{}, err
	}

	now := e.nowRFC3339()
	payload := events.Payload{"from": rep.Status, "to": target}
	switch target {
	case "verified":
		points := e.Config.PointsFor(rep.WasteType)
		if opts.Points != nil {
			points = *opts.Points
		}
		if points < 0 {
			return domain.WasteReport{}, validationf("points must be non-negative")
		}
		rep.PointsAwarded = &points
		rep.VerifiedAt = &now
		rep.RejectionReason = nil
		payload["points"] = points
	case "rejected":
		reason := strings.TrimSpace(opts.RejectionReason)
		if reason == "" {
			return domain.WasteReport{}, validationf("rejection requires a reason")
		}
		rep.RejectionReason = &reason
		payload["reason"] = reason
	}
	rep.Status = target
	rep.UpdatedAt = now
	if err := e.updateReport(ctx, tx, &rep); err != nil {
		return domain.WasteReport{}, err
	}
	if err := e.Events.Append(ctx, tx, "report."+opts.Action, domain.KindReport, rep.ID, opts.ActorID, payload); err != nil {
		return domain.WasteReport{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WasteReport{}, err
	}
	e.Metrics.Transition(domain.KindReport, opts.Action)
	return rep, nil
}

type ReportCompleteOptions struct {
	ReportID        string
	WorkerID        string
	ExpectedVersion int
}

// CompleteReport marks a verified report as collected by a worker. The
// first worker to complete it becomes its worker; a different worker
// retrying afterwards gets a conflict, the same worker a no-op.
func (e Engine) CompleteReport(ctx context.Context, opts ReportCompleteOptions) (domain.WasteReport, error) {
	if opts.WorkerID == "" {
		return domain.WasteReport{}, validationf("worker is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WasteReport{}, err
	}
	defer tx.Rollback()

	rep, err := e.Repo.GetReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		return domain.WasteReport{}, err
	}
	if err := checkVersion(domain.KindReport, opts.ExpectedVersion, rep.Version); err != nil {
		e.Metrics.Denied(domain.KindReport, "stale_version")
		return domain.WasteReport{}, err
	}
	if rep.Status == "worker_completed" {
		if rep.WorkerID != nil && *rep.WorkerID == opts.WorkerID {
			return rep, nil
		}
		return domain.WasteReport{}, conflictf("report %s already completed by another worker", rep.ID)
	}
	if err := ensureReportTransition(rep.Status, "worker_completed"); err != nil {
		e.Metrics.Denied(domain.KindReport, "illegal_transition")
		return domain.WasteReport{}, err
	}
	now := e.nowRFC3339()
	rep.Status = "worker_completed"
	rep.WorkerID = &opts.WorkerID
	rep.WorkerCompletedAt = &now
	rep.UpdatedAt = now
	if err := e.updateReport(ctx, tx, &rep); err != nil {
		return domain.WasteReport{}, err
	}
	if err := e.Events.Append(ctx, tx, "report.complete", domain.KindReport, rep.ID, opts.WorkerID, events.Payload{
		"from": "verified", "to": "worker_completed",
	}); err != nil {
		return domain.WasteReport{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WasteReport{}, err
	}
	e.Metrics.Transition(domain.KindReport, "complete")
	return rep, nil
}

func (e Engine) updateReport(ctx context.Context, tx *sql.Tx, rep *domain.WasteReport) error {
	if err := e.Repo.UpdateReport(ctx, tx, *rep); err != nil {
		if err == repo.ErrStale {
			return conflictf("report %s was modified concurrently", rep.ID)
		}
		return err
	}
	rep.Version++
	return nil
}
