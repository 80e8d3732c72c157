package workflow

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"wasteflow/internal/domain"
	"wasteflow/internal/events"
	"wasteflow/internal/repo"
)

type ApplicationCreateOptions struct {
	ApplicantID string
	FullName    string
	Phone       string
	Skills      string
}

// SubmitApplication files a worker application. An applicant can have at
// most one application that is pending or verified.
func (e Engine) SubmitApplication(ctx context.Context, opts ApplicationCreateOptions) (domain.WorkerApplication, error) {
	if opts.ApplicantID == "" {
		return domain.WorkerApplication{}, validationf("applicant is required")
	}
	if strings.TrimSpace(opts.FullName) == "" {
		return domain.WorkerApplication{}, validationf("full name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkerApplication{}, err
	}
	defer tx.Rollback()

	exists, err := e.Repo.PendingApplicationFor(ctx, tx, opts.ApplicantID)
	if err != nil {
		return domain.WorkerApplication{}, err
	}
	if exists {
		return domain.WorkerApplication{}, conflictf("applicant %s already has an open application", opts.ApplicantID)
	}

	now := e.nowRFC3339()
	app := domain.WorkerApplication{
		ID:          uuid.NewString(),
		ApplicantID: opts.ApplicantID,
		FullName:    opts.FullName,
		Phone:       opts.Phone,
		Skills:      opts.Skills,
		Status:      "pending",
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if err := e.Repo.InsertApplication(ctx, tx, app); err != nil {
		return domain.WorkerApplication{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.submit", domain.KindApplication, app.ID, opts.ApplicantID, events.Payload{
		"status": app.Status,
	}); err != nil {
		return domain.WorkerApplication{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkerApplication{}, err
	}
	e.Metrics.Transition(domain.KindApplication, "submit")
	return app, nil
}

type ApplicationReviewOptions struct {
	ApplicationID   string
	Action          string // verify | reject
	RejectionReason string
	ActorID         string
	ExpectedVersion int
}

// ReviewApplication verifies or rejects a pending application. Verifying
// promotes the applicant to the worker role in the same transaction.
func (e Engine) ReviewApplication(ctx context.Context, opts ApplicationReviewOptions) (domain.WorkerApplication, error) {
	var target string
	switch opts.Action {
	case "verify":
		target = "verified"
	case "reject":
		target = "rejected"
	default:
		return domain.WorkerApplication{}, validationf("unknown application action %q", opts.Action)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkerApplication{}, err
	}
	defer tx.Rollback()

	app, err := e.Repo.GetApplicationTx(ctx, tx, opts.ApplicationID)
	if err != nil {
		return domain.WorkerApplication{}, err
	}
	if err := checkVersion(domain.KindApplication, opts.ExpectedVersion, app.Version); err != nil {
		e.Metrics.Denied(domain.KindApplication, "stale_version")
		return domain.WorkerApplication{}, err
	}
	if app.Status == target {
		return app, nil
	}
	if err := ensureApplicationTransition(app.Status, target); err != nil {
		e.Metrics.Denied(domain.KindApplication, "illegal_transition")
		return domain.WorkerApplication{}, err
	}

	now := e.nowRFC3339()
	payload := events.Payload{"from": app.Status, "to": target}
	switch target {
	case "verified":
		app.VerifiedAt = &now
		if err := e.Repo.SetUserRole(ctx, tx, app.ApplicantID, domain.RoleWorker); err != nil && err != repo.ErrNotFound {
			return domain.WorkerApplication{}, err
		}
		if err := e.Repo.AssignRole(ctx, tx, app.ApplicantID, domain.RoleWorker); err != nil {
			return domain.WorkerApplication{}, err
		}
		payload["promoted_to"] = domain.RoleWorker
	case "rejected":
		reason := strings.TrimSpace(opts.RejectionReason)
		if reason == "" {
			return domain.WorkerApplication{}, validationf("rejection requires a reason")
		}
		app.RejectionReason = &reason
		payload["reason"] = reason
	}
	app.Status = target
	app.UpdatedAt = now
	if err := e.Repo.UpdateApplication(ctx, tx, app); err != nil {
		if err == repo.ErrStale {
			return domain.WorkerApplication{}, conflictf("application %s was modified concurrently", app.ID)
		}
		return domain.WorkerApplication{}, err
	}
	app.Version++
	if err := e.Events.Append(ctx, tx, "application."+opts.Action, domain.KindApplication, app.ID, opts.ActorID, payload); err != nil {
		return domain.WorkerApplication{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkerApplication{}, err
	}
	e.Metrics.Transition(domain.KindApplication, opts.Action)
	return app, nil
}
