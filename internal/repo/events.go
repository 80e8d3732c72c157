package repo

import (
	"context"
	"database/sql"
	"strings"

	"wasteflow/internal/domain"
)

const eventColumns = `id,champion_id,title,description,location,starts_at,status,created_at,updated_at,version`

func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var ev domain.Event
	var description, location, startsAt sql.NullString
	err := scan(&ev.ID, &ev.ChampionID, &ev.Title, &description, &location, &startsAt,
		&ev.Status, &ev.CreatedAt, &ev.UpdatedAt, &ev.Version)
	if err == sql.ErrNoRows {
		return ev, ErrNotFound
	}
	if err != nil {
		return ev, err
	}
	if description.Valid {
		ev.Description = description.String
	}
	if location.Valid {
		ev.Location = location.String
	}
	if startsAt.Valid {
		ev.StartsAt = startsAt.String
	}
	return ev, nil
}

func (r Repo) InsertEvent(ctx context.Context, tx *sql.Tx, ev domain.Event) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO community_events(`+eventColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.ChampionID, ev.Title, nullable(ev.Description), nullable(ev.Location), nullable(ev.StartsAt),
		ev.Status, ev.CreatedAt, ev.UpdatedAt, ev.Version)
	return err
}

func (r Repo) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	ev, err := scanEvent(r.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM community_events WHERE id=?`, id).Scan)
	if err != nil {
		return ev, err
	}
	participants, err := r.ListEventParticipants(ctx, id)
	if err != nil {
		return ev, err
	}
	ev.Participants = participants
	return ev, nil
}

func (r Repo) GetEventTx(ctx context.Context, tx *sql.Tx, id string) (domain.Event, error) {
	return scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM community_events WHERE id=?`, id).Scan)
}

func (r Repo) UpdateEvent(ctx context.Context, tx *sql.Tx, ev domain.Event) error {
	res, err := tx.ExecContext(ctx, `UPDATE community_events SET title=?, description=?, location=?, starts_at=?, status=?, updated_at=?, version=version+1 WHERE id=? AND version=?`,
		ev.Title, nullable(ev.Description), nullable(ev.Location), nullable(ev.StartsAt), ev.Status, ev.UpdatedAt, ev.ID, ev.Version)
	if err != nil {
		return err
	}
	return guardAffected(ctx, tx, res, "community_events", ev.ID)
}

// DeleteEvent removes the event; participants cascade.
func (r Repo) DeleteEvent(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM community_events WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddEventParticipant is idempotent: joining twice is a no-op.
func (r Repo) AddEventParticipant(ctx context.Context, tx *sql.Tx, eventID, userID, joinedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO event_participants(event_id,user_id,joined_at) VALUES (?,?,?) ON CONFLICT(event_id,user_id) DO NOTHING`,
		eventID, userID, joinedAt)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (r Repo) ListEventParticipants(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id FROM event_participants WHERE event_id=? ORDER BY joined_at ASC, user_id ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		res = append(res, userID)
	}
	return res, rows.Err()
}

func (r Repo) CountEventParticipants(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_participants WHERE event_id=?`, eventID).Scan(&n)
	return n, err
}

type EventFilters struct {
	Status     string
	ChampionID string
	Limit      int
}

func (r Repo) ListEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ChampionID != "" {
		clauses = append(clauses, "champion_id=?")
		args = append(args, f.ChampionID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + eventColumns + ` FROM community_events ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
