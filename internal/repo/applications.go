package repo

import (
	"context"
	"database/sql"
	"strings"

	"wasteflow/internal/domain"
)

const applicationColumns = `id,applicant_id,full_name,phone,skills,status,rejection_reason,verified_at,created_at,updated_at,version`

func scanApplication(scan func(dest ...any) error) (domain.WorkerApplication, error) {
	var app domain.WorkerApplication
	var phone, skills, rejection, verifiedAt sql.NullString
	err := scan(&app.ID, &app.ApplicantID, &app.FullName, &phone, &skills, &app.Status,
		&rejection, &verifiedAt, &app.CreatedAt, &app.UpdatedAt, &app.Version)
	if err == sql.ErrNoRows {
		return app, ErrNotFound
	}
	if err != nil {
		return app, err
	}
	if phone.Valid {
		app.Phone = phone.String
	}
	if skills.Valid {
		app.Skills = skills.String
	}
	if rejection.Valid {
		app.RejectionReason = &rejection.String
	}
	if verifiedAt.Valid {
		app.VerifiedAt = &verifiedAt.String
	}
	return app, nil
}

func (r Repo) InsertApplication(ctx context.Context, tx *sql.Tx, app domain.WorkerApplication) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO worker_applications(`+applicationColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		app.ID, app.ApplicantID, app.FullName, nullable(app.Phone), nullable(app.Skills), app.Status,
		nullableStringPtr(app.RejectionReason), nullableStringPtr(app.VerifiedAt), app.CreatedAt, app.UpdatedAt, app.Version)
	return err
}

func (r Repo) GetApplication(ctx context.Context, id string) (domain.WorkerApplication, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM worker_applications WHERE id=?`, id)
	return scanApplication(row.Scan)
}

func (r Repo) GetApplicationTx(ctx context.Context, tx *sql.Tx, id string) (domain.WorkerApplication, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM worker_applications WHERE id=?`, id)
	return scanApplication(row.Scan)
}

func (r Repo) UpdateApplication(ctx context.Context, tx *sql.Tx, app domain.WorkerApplication) error {
	res, err := tx.ExecContext(ctx, `UPDATE worker_applications SET full_name=?, phone=?, skills=?, status=?, rejection_reason=?, verified_at=?, updated_at=?, version=version+1 WHERE id=? AND version=?`,
		app.FullName, nullable(app.Phone), nullable(app.Skills), app.Status,
		nullableStringPtr(app.RejectionReason), nullableStringPtr(app.VerifiedAt), app.UpdatedAt, app.ID, app.Version)
	if err != nil {
		return err
	}
	return guardAffected(ctx, tx, res, "worker_applications", app.ID)
}

// PendingApplicationFor reports whether the applicant already has an
// application that is not rejected.
func (r Repo) PendingApplicationFor(ctx context.Context, tx *sql.Tx, applicantID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM worker_applications WHERE applicant_id=? AND status IN ('pending','verified') LIMIT 1`, applicantID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type ApplicationFilters struct {
	Status      string
	ApplicantID string
	Limit       int
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilters) ([]domain.WorkerApplication, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ApplicantID != "" {
		clauses = append(clauses, "applicant_id=?")
		args = append(args, f.ApplicantID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + applicationColumns + ` FROM worker_applications ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkerApplication
	for rows.Next() {
		app, err := scanApplication(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, app)
	}
	return res, rows.Err()
}
