package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"wasteflow/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrStale is returned by version-guarded updates when the row moved on
// underneath the caller.
var ErrStale = errors.New("stale version")

const reportColumns = `id,reporter_id,waste_type,description,location,weight_kg,status,points_awarded,rejection_reason,worker_id,verified_at,worker_completed_at,created_at,updated_at,version`

func scanReport(scan func(dest ...any) error) (domain.WasteReport, error) {
	var rep domain.WasteReport
	var description, location sql.NullString
	var weight sql.NullFloat64
	var points sql.NullInt64
	var rejection, workerID, verifiedAt, workerCompletedAt sql.NullString
	err := scan(&rep.ID, &rep.ReporterID, &rep.WasteType, &description, &location, &weight, &rep.Status,
		&points, &rejection, &workerID, &verifiedAt, &workerCompletedAt, &rep.CreatedAt, &rep.UpdatedAt, &rep.Version)
	if err == sql.ErrNoRows {
		return rep, ErrNotFound
	}
	if err != nil {
		return rep, err
	}
	if description.Valid {
		rep.Description = description.String
	}
	if location.Valid {
		rep.Location = location.String
	}
	if weight.Valid {
		rep.WeightKG = weight.Float64
	}
	if points.Valid {
		p := int(points.Int64)
		rep.PointsAwarded = &p
	}
	if rejection.Valid {
		rep.RejectionReason = &rejection.String
	}
	if workerID.Valid {
		rep.WorkerID = &workerID.String
	}
	if verifiedAt.Valid {
		rep.VerifiedAt = &verifiedAt.String
	}
	if workerCompletedAt.Valid {
		rep.WorkerCompletedAt = &workerCompletedAt.String
	}
	return rep, nil
}

func (r Repo) InsertReport(ctx context.Context, tx *sql.Tx, rep domain.WasteReport) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO waste_reports(`+reportColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.ReporterID, rep.WasteType, nullable(rep.Description), nullable(rep.Location), nullableFloat(rep.WeightKG),
		rep.Status, nullableIntPtr(rep.PointsAwarded), nullableStringPtr(rep.RejectionReason), nullableStringPtr(rep.WorkerID),
		nullableStringPtr(rep.VerifiedAt), nullableStringPtr(rep.WorkerCompletedAt), rep.CreatedAt, rep.UpdatedAt, rep.Version)
	return err
}

func (r Repo) GetReport(ctx context.Context, id string) (domain.WasteReport, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM waste_reports WHERE id=?`, id)
	return scanReport(row.Scan)
}

func (r Repo) GetReportTx(ctx context.Context, tx *sql.Tx, id string) (domain.WasteReport, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM waste_reports WHERE id=?`, id)
	return scanReport(row.Scan)
}

// UpdateReport writes the full mutable state of a report, guarded by the
// version the caller read. On success the stored version is rep.Version+1.
func (r Repo) UpdateReport(ctx context.Context, tx *sql.Tx, rep domain.WasteReport) error {
	res, err := tx.ExecContext(ctx, `UPDATE waste_reports SET waste_type=?, description=?, location=?, weight_kg=?, status=?, points_awarded=?, rejection_reason=?, worker_id=?, verified_at=?, worker_completed_at=?, updated_at=?, version=version+1 WHERE id=? AND version=?`,
		rep.WasteType, nullable(rep.Description), nullable(rep.Location), nullableFloat(rep.WeightKG), rep.Status,
		nullableIntPtr(rep.PointsAwarded), nullableStringPtr(rep.RejectionReason), nullableStringPtr(rep.WorkerID),
		nullableStringPtr(rep.VerifiedAt), nullableStringPtr(rep.WorkerCompletedAt), rep.UpdatedAt, rep.ID, rep.Version)
	if err != nil {
		return err
	}
	return guardAffected(ctx, tx, res, "waste_reports", rep.ID)
}

type ReportFilters struct {
	Status     string
	ReporterID string
	WorkerID   string
	WasteType  string
	Limit      int
}

func (r Repo) ListReports(ctx context.Context, f ReportFilters) ([]domain.WasteReport, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ReporterID != "" {
		clauses = append(clauses, "reporter_id=?")
		args = append(args, f.ReporterID)
	}
	if f.WorkerID != "" {
		clauses = append(clauses, "worker_id=?")
		args = append(args, f.WorkerID)
	}
	if f.WasteType != "" {
		clauses = append(clauses, "waste_type=?")
		args = append(args, f.WasteType)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + reportColumns + ` FROM waste_reports ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WasteReport
	for rows.Next() {
		rep, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}

// guardAffected distinguishes a missing row from a version mismatch after
// an UPDATE ... AND version=? touched nothing.
func guardAffected(ctx context.Context, tx *sql.Tx, res sql.Result, table, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id=?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrStale
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}
