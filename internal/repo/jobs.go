package repo

import (
	"context"
	"database/sql"
	"strings"

	"wasteflow/internal/domain"
)

const jobColumns = `id,client_id,title,description,category,location,status,worker_id,admin_notes,rejection_reason,scheduled_date,completed_at,created_at,updated_at,version`

func scanJob(scan func(dest ...any) error) (domain.Job, error) {
	var j domain.Job
	var description, category, location sql.NullString
	var workerID, adminNotes, rejection, scheduledDate, completedAt sql.NullString
	err := scan(&j.ID, &j.ClientID, &j.Title, &description, &category, &location, &j.Status,
		&workerID, &adminNotes, &rejection, &scheduledDate, &completedAt, &j.CreatedAt, &j.UpdatedAt, &j.Version)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	if description.Valid {
		j.Description = description.String
	}
	if category.Valid {
		j.Category = category.String
	}
	if location.Valid {
		j.Location = location.String
	}
	if workerID.Valid {
		j.WorkerID = &workerID.String
	}
	if adminNotes.Valid {
		j.AdminNotes = &adminNotes.String
	}
	if rejection.Valid {
		j.RejectionReason = &rejection.String
	}
	if scheduledDate.Valid {
		j.ScheduledDate = &scheduledDate.String
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.String
	}
	return j, nil
}

func (r Repo) InsertJob(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO jobs(`+jobColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.ClientID, j.Title, nullable(j.Description), nullable(j.Category), nullable(j.Location), j.Status,
		nullableStringPtr(j.WorkerID), nullableStringPtr(j.AdminNotes), nullableStringPtr(j.RejectionReason),
		nullableStringPtr(j.ScheduledDate), nullableStringPtr(j.CompletedAt), j.CreatedAt, j.UpdatedAt, j.Version)
	return err
}

func (r Repo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	return scanJob(row.Scan)
}

func (r Repo) GetJobTx(ctx context.Context, tx *sql.Tx, id string) (domain.Job, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	return scanJob(row.Scan)
}

func (r Repo) UpdateJob(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET title=?, description=?, category=?, location=?, status=?, worker_id=?, admin_notes=?, rejection_reason=?, scheduled_date=?, completed_at=?, updated_at=?, version=version+1 WHERE id=? AND version=?`,
		j.Title, nullable(j.Description), nullable(j.Category), nullable(j.Location), j.Status,
		nullableStringPtr(j.WorkerID), nullableStringPtr(j.AdminNotes), nullableStringPtr(j.RejectionReason),
		nullableStringPtr(j.ScheduledDate), nullableStringPtr(j.CompletedAt), j.UpdatedAt, j.ID, j.Version)
	if err != nil {
		return err
	}
	return guardAffected(ctx, tx, res, "jobs", j.ID)
}

func (r Repo) DeleteJob(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type JobFilters struct {
	Status   string
	ClientID string
	WorkerID string
	Category string
	Limit    int
}

func (r Repo) ListJobs(ctx context.Context, f JobFilters) ([]domain.Job, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.WorkerID != "" {
		clauses = append(clauses, "worker_id=?")
		args = append(args, f.WorkerID)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + jobColumns + ` FROM jobs ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

// ListOpenJobs returns verified jobs with no worker attached, oldest first,
// for the worker-facing feed.
func (r Repo) ListOpenJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status='verified' AND worker_id IS NULL ORDER BY created_at ASC, id ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}
