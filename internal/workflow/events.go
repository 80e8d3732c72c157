package workflow

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"wasteflow/internal/domain"
	"wasteflow/internal/events"
	"wasteflow/internal/repo"
)

type EventCreateOptions struct {
	ChampionID  string
	Title       string
	Description string
	Location    string
	StartsAt    string
}

// CreateEvent schedules a community cleanup drive in upcoming status.
func (e Engine) CreateEvent(ctx context.Context, opts EventCreateOptions) (domain.Event, error) {
	if opts.ChampionID == "" {
		return domain.Event{}, validationf("champion is required")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Event{}, validationf("title is required")
	}
	now := e.nowRFC3339()
	ev := domain.Event{
		ID:          uuid.NewString(),
		ChampionID:  opts.ChampionID,
		Title:       opts.Title,
		Description: opts.Description,
		Location:    opts.Location,
		StartsAt:    opts.StartsAt,
		Status:      "upcoming",
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEvent(ctx, tx, ev); err != nil {
		return domain.Event{}, err
	}
	if err := e.Events.Append(ctx, tx, "event.create", domain.KindEvent, ev.ID, opts.ChampionID, events.Payload{
		"status": ev.Status, "title": ev.Title,
	}); err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}
	e.Metrics.Transition(domain.KindEvent, "create")
	return ev, nil
}

type EventStatusOptions struct {
	EventID         string
	Status          string // upcoming | ongoing | completed
	ActorID         string
	ExpectedVersion int
}

// SetEventStatus moves an event along its lifecycle. Organisers may also
// move backwards, reopening a completed drive.
func (e Engine) SetEventStatus(ctx context.Context, opts EventStatusOptions) (domain.Event, error) {
	switch opts.Status {
	case "upcoming", "ongoing", "completed":
	default:
		return domain.Event{}, validationf("unknown event status %q", opts.Status)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()

	ev, err := e.Repo.GetEventTx(ctx, tx, opts.EventID)
	if err != nil {
		return domain.Event{}, err
	}
	if err := checkVersion(domain.KindEvent, opts.ExpectedVersion, ev.Version); err != nil {
		e.Metrics.Denied(domain.KindEvent, "stale_version")
		return domain.Event{}, err
	}
	if ev.Status == opts.Status {
		return ev, nil
	}
	if err := ensureEventTransition(ev.Status, opts.Status); err != nil {
		e.Metrics.Denied(domain.KindEvent, "illegal_transition")
		return domain.Event{}, err
	}
	from := ev.Status
	ev.Status = opts.Status
	ev.UpdatedAt = e.nowRFC3339()
	if err := e.Repo.UpdateEvent(ctx, tx, ev); err != nil {
		if err == repo.ErrStale {
			return domain.Event{}, conflictf("event %s was modified concurrently", ev.ID)
		}
		return domain.Event{}, err
	}
	ev.Version++
	if err := e.Events.Append(ctx, tx, "event.status", domain.KindEvent, ev.ID, opts.ActorID, events.Payload{
		"from": from, "to": ev.Status,
	}); err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}
	e.Metrics.Transition(domain.KindEvent, opts.Status)
	return ev, nil
}

type EventJoinOptions struct {
	EventID string
	UserID  string
}

// JoinEvent registers a participant. Joining twice is a no-op; completed
// events cannot be joined.
func (e Engine) JoinEvent(ctx context.Context, opts EventJoinOptions) (domain.Event, error) {
	if opts.UserID == "" {
		return domain.Event{}, validationf("user is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()

	ev, err := e.Repo.GetEventTx(ctx, tx, opts.EventID)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.Status == "completed" {
		e.Metrics.Denied(domain.KindEvent, "completed_event")
		return domain.Event{}, validationf("event %s is already completed", ev.ID)
	}
	joined, err := e.Repo.AddEventParticipant(ctx, tx, ev.ID, opts.UserID, e.nowRFC3339())
	if err != nil {
		return domain.Event{}, err
	}
	if joined {
		if err := e.Events.Append(ctx, tx, "event.join", domain.KindEvent, ev.ID, opts.UserID, events.Payload{}); err != nil {
			return domain.Event{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}
	if joined {
		e.Metrics.Transition(domain.KindEvent, "join")
	}
	return e.Repo.GetEvent(ctx, ev.ID)
}

type EventDeleteOptions struct {
	EventID      string
	ActorID      string
	RequireOwner bool
}

// DeleteEvent removes an event and its participant list.
func (e Engine) DeleteEvent(ctx context.Context, opts EventDeleteOptions) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ev, err := e.Repo.GetEventTx(ctx, tx, opts.EventID)
	if err != nil {
		return err
	}
	if opts.RequireOwner && ev.ChampionID != opts.ActorID {
		return conflictf("event %s belongs to another champion", ev.ID)
	}
	if err := e.Repo.DeleteEvent(ctx, tx, ev.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "event.delete", domain.KindEvent, ev.ID, opts.ActorID, events.Payload{
		"status": ev.Status,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Metrics.Transition(domain.KindEvent, "delete")
	return nil
}
