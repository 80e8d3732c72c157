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

type JobCreateOptions struct {
	ClientID      string
	Title         string
	Description   string
	Category      string
	Location      string
	ScheduledDate string
}

// CreateJob posts a new collection job in pending status, awaiting admin
// review before workers can see it.
func (e Engine) CreateJob(ctx context.Context, opts JobCreateOptions) (domain.Job, error) {
	if opts.ClientID == "" {
		return domain.Job{}, validationf("client is required")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Job{}, validationf("title is required")
	}
	now := e.nowRFC3339()
	j := domain.Job{
		ID:            uuid.NewString(),
		ClientID:      opts.ClientID,
		Title:         opts.Title,
		Description:   opts.Description,
		Category:      opts.Category,
		Location:      opts.Location,
		Status:        "pending",
		ScheduledDate: optionalString(opts.ScheduledDate),
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertJob(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.create", domain.KindJob, j.ID, opts.ClientID, events.Payload{
		"status": j.Status, "title": j.Title,
	}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	e.Metrics.Transition(domain.KindJob, "create")
	return j, nil
}

type JobReviewOptions struct {
	JobID           string
	Action          string // verify | reject
	AdminNotes      string
	RejectionReason string
	ScheduledDate   string
	ActorID         string
	ExpectedVersion int
}

// ReviewJob is the admin gate: verify makes the job visible to workers,
// reject closes it with a reason.
func (e Engine) ReviewJob(ctx context.Context, opts JobReviewOptions) (domain.Job, error) {
	var target string
	switch opts.Action {
	case "verify":
		target = "verified"
	case "reject":
		target = "rejected"
	default:
		return domain.Job{}, validationf("unknown job action %q", opts.Action)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	j, err := e.Repo.GetJobTx(ctx, tx, opts.JobID)
	if err != nil {
		return domain.Job{}, err
	}
	if err := checkVersion(domain.KindJob, opts.ExpectedVersion, j.Version); err != nil {
		e.Metrics.Denied(domain.KindJob, "stale_version")
		return domain.Job{}, err
	}
	if j.Status == target {
		return j, nil
	}
	if err := ensureJobTransition(j.Status, target); err != nil {
		e.Metrics.Denied(domain.KindJob, "illegal_transition")
		return domain.Job{}, err
	}

	now := e.nowRFC3339()
	payload := events.Payload{"from": j.Status, "to": target}
	if target == "rejected" {
		reason := strings.TrimSpace(opts.RejectionReason)
		if reason == "" {
			return domain.Job{}, validationf("rejection requires a reason")
		}
		j.RejectionReason = &reason
		payload["reason"] = reason
	}
	if opts.AdminNotes != "" {
		j.AdminNotes = &opts.AdminNotes
	}
	if opts.ScheduledDate != "" {
		j.ScheduledDate = &opts.ScheduledDate
	}
	j.Status = target
	j.UpdatedAt = now
	if err := e.updateJob(ctx, tx, &j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job."+opts.Action, domain.KindJob, j.ID, opts.ActorID, payload); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	e.Metrics.Transition(domain.KindJob, opts.Action)
	return j, nil
}

type JobWorkOptions struct {
	JobID           string
	Action          string // accept | start | complete
	WorkerID        string
	ExpectedVersion int
}

var jobWorkTargets = map[string]string{
	"accept":   "assigned",
	"start":    "in_progress",
	"complete": "completed",
}

// WorkJob drives the worker side of the job lifecycle. Accepting a
// verified job binds it to the worker; only that worker may start and
// complete it afterwards.
func (e Engine) WorkJob(ctx context.Context, opts JobWorkOptions) (domain.Job, error) {
	target, ok := jobWorkTargets[opts.Action]
	if !ok {
		return domain.Job{}, validationf("unknown job action %q", opts.Action)
	}
	if opts.WorkerID == "" {
		return domain.Job{}, validationf("worker is required")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	j, err := e.Repo.GetJobTx(ctx, tx, opts.JobID)
	if err != nil {
		return domain.Job{}, err
	}
	if err := checkVersion(domain.KindJob, opts.ExpectedVersion, j.Version); err != nil {
		e.Metrics.Denied(domain.KindJob, "stale_version")
		return domain.Job{}, err
	}
	if j.WorkerID != nil && *j.WorkerID != opts.WorkerID {
		e.Metrics.Denied(domain.KindJob, "worker_mismatch")
		return domain.Job{}, conflictf("job %s is assigned to another worker", j.ID)
	}
	if j.Status == target {
		return j, nil
	}
	if err := ensureJobTransition(j.Status, target); err != nil {
		e.Metrics.Denied(domain.KindJob, "illegal_transition")
		return domain.Job{}, err
	}

	now := e.nowRFC3339()
	if opts.Action == "accept" {
		j.WorkerID = &opts.WorkerID
	}
	if opts.Action == "complete" {
		j.CompletedAt = &now
	}
	j.Status = target
	j.UpdatedAt = now
	if err := e.updateJob(ctx, tx, &j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job."+opts.Action, domain.KindJob, j.ID, opts.WorkerID, events.Payload{
		"to": target,
	}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	e.Metrics.Transition(domain.KindJob, opts.Action)
	return j, nil
}

type JobDeleteOptions struct {
	JobID        string
	ActorID      string
	RequireOwner bool
}

// DeleteJob removes a job that is not being worked on. Owners may delete
// their own postings; admins may delete any.
func (e Engine) DeleteJob(ctx context.Context, opts JobDeleteOptions) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	j, err := e.Repo.GetJobTx(ctx, tx, opts.JobID)
	if err != nil {
		return err
	}
	if opts.RequireOwner && j.ClientID != opts.ActorID {
		return conflictf("job %s belongs to another client", j.ID)
	}
	if j.Status == "assigned" || j.Status == "in_progress" {
		e.Metrics.Denied(domain.KindJob, "active_job")
		return validationf("cannot delete a job while a worker is on it")
	}
	if err := e.Repo.DeleteJob(ctx, tx, j.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "job.delete", domain.KindJob, j.ID, opts.ActorID, events.Payload{
		"status": j.Status,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Metrics.Transition(domain.KindJob, "delete")
	return nil
}

func (e Engine) updateJob(ctx context.Context, tx *sql.Tx, j *domain.Job) error {
	if err := e.Repo.UpdateJob(ctx, tx, *j); err != nil {
		if err == repo.ErrStale {
			return conflictf("job %s was modified concurrently", j.ID)
		}
		return err
	}
	j.Version++
	return nil
}
