package repo

import (
	"context"
	"database/sql"
	"strings"

	"wasteflow/internal/domain"
)

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	err := scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,name,email,role,created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Role, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,name,email,role,created_at FROM users WHERE id=?`, id).Scan)
}

func (r Repo) GetUserTx(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(tx.QueryRowContext(ctx, `SELECT id,name,email,role,created_at FROM users WHERE id=?`, id).Scan)
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,name,email,role,created_at FROM users WHERE email=?`, email).Scan)
}

func (r Repo) SetUserRole(ctx context.Context, tx *sql.Tx, userID, role string) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET role=? WHERE id=?`, role, userID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type UserFilters struct {
	Role  string
	Limit int
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	var clauses []string
	var args []any
	if f.Role != "" {
		clauses = append(clauses, "role=?")
		args = append(args, f.Role)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,name,email,role,created_at FROM users ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// DeleteUser removes the user row along with role grants and API keys.
// Owned content is handled by DeleteUserContent first.
func (r Repo) DeleteUser(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM api_keys WHERE user_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUserContent removes everything the user owns: reports they filed,
// jobs they posted, listings they sell, applications they made, events they
// run, and event memberships. Returns per-table delete counts keyed by
// entity kind.
func (r Repo) DeleteUserContent(ctx context.Context, tx *sql.Tx, userID string) (map[string]int, error) {
	counts := map[string]int{}
	steps := []struct {
		kind  string
		query string
	}{
		{domain.KindReport, `DELETE FROM waste_reports WHERE reporter_id=?`},
		{domain.KindJob, `DELETE FROM jobs WHERE client_id=?`},
		{domain.KindItem, `DELETE FROM marketplace_items WHERE seller_id=?`},
		{domain.KindApplication, `DELETE FROM worker_applications WHERE applicant_id=?`},
		{domain.KindEvent, `DELETE FROM community_events WHERE champion_id=?`},
	}
	for _, step := range steps {
		res, err := tx.ExecContext(ctx, step.query, userID)
		if err != nil {
			return nil, err
		}
		affected, _ := res.RowsAffected()
		if affected > 0 {
			counts[step.kind] = int(affected)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_participants WHERE user_id=?`, userID); err != nil {
		return nil, err
	}
	// Assignments on other people's entities are detached, not deleted.
	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET worker_id=NULL WHERE worker_id=?`, userID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE waste_reports SET worker_id=NULL WHERE worker_id=?`, userID); err != nil {
		return nil, err
	}
	return counts, nil
}
