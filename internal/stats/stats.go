package stats

import (
	"context"
	"database/sql"
	"strings"
)

// Service answers read-only aggregation queries straight from SQL. It
// never goes through the workflow engine.
type Service struct {
	DB *sql.DB
}

func New(db *sql.DB) Service {
	return Service{DB: db}
}

// Filter narrows aggregations to a creation date range and, where the
// table has one, a category. Bounds are RFC3339 strings, inclusive from,
// exclusive to.
type Filter struct {
	From     string
	To       string
	Category string
}

func (f Filter) clauses(categoryColumn string) ([]string, []any) {
	var clauses []string
	var args []any
	if f.From != "" {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.To)
	}
	if f.Category != "" && categoryColumn != "" {
		clauses = append(clauses, categoryColumn+" = ?")
		args = append(args, f.Category)
	}
	return clauses, args
}

func whereOf(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (s Service) countByStatus(ctx context.Context, table, categoryColumn string, f Filter) (map[string]int, error) {
	clauses, args := f.clauses(categoryColumn)
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM `+table+whereOf(clauses)+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		res[status] = n
	}
	return res, rows.Err()
}

// ReportStats aggregates waste reports: per-status counts, total points
// awarded and total verified weight.
type ReportStats struct {
	ByStatus      map[string]int `json:"by_status"`
	TotalPoints   int            `json:"total_points"`
	TotalWeightKG float64        `json:"total_weight_kg"`
}

func (s Service) Reports(ctx context.Context, f Filter) (ReportStats, error) {
	st := ReportStats{}
	byStatus, err := s.countByStatus(ctx, "waste_reports", "waste_type", f)
	if err != nil {
		return st, err
	}
	st.ByStatus = byStatus
	clauses, args := f.clauses("waste_type")
	clauses = append(clauses, "status IN ('verified','worker_completed')")
	row := s.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(points_awarded),0), COALESCE(SUM(weight_kg),0) FROM waste_reports`+whereOf(clauses), args...)
	if err := row.Scan(&st.TotalPoints, &st.TotalWeightKG); err != nil {
		return st, err
	}
	return st, nil
}

// ReportTypeBreakdown counts reports per waste type.
func (s Service) ReportTypeBreakdown(ctx context.Context, f Filter) (map[string]int, error) {
	clauses, args := f.clauses("waste_type")
	rows, err := s.DB.QueryContext(ctx, `SELECT waste_type, COUNT(*) FROM waste_reports`+whereOf(clauses)+` GROUP BY waste_type`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var wasteType string
		var n int
		if err := rows.Scan(&wasteType, &n); err != nil {
			return nil, err
		}
		res[wasteType] = n
	}
	return res, rows.Err()
}

type JobStats struct {
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}

func (s Service) Jobs(ctx context.Context, f Filter) (JobStats, error) {
	st := JobStats{}
	byStatus, err := s.countByStatus(ctx, "jobs", "category", f)
	if err != nil {
		return st, err
	}
	st.ByStatus = byStatus
	clauses, args := f.clauses("category")
	rows, err := s.DB.QueryContext(ctx, `SELECT COALESCE(category,''), COUNT(*) FROM jobs`+whereOf(clauses)+` GROUP BY category`, args...)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	st.ByCategory = map[string]int{}
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return st, err
		}
		if category == "" {
			category = "uncategorised"
		}
		st.ByCategory[category] = n
	}
	return st, rows.Err()
}

type MarketplaceStats struct {
	ByStatus       map[string]int `json:"by_status"`
	TotalSoldCents int            `json:"total_sold_cents"`
	TotalViews     int            `json:"total_views"`
	ActiveListings int            `json:"active_listings"`
}

func (s Service) Marketplace(ctx context.Context, f Filter) (MarketplaceStats, error) {
	st := MarketplaceStats{}
	byStatus, err := s.countByStatus(ctx, "marketplace_items", "category", f)
	if err != nil {
		return st, err
	}
	st.ByStatus = byStatus
	st.ActiveListings = byStatus["approved"]
	clauses, args := f.clauses("category")
	soldClauses := append(append([]string{}, clauses...), "status='sold'")
	row := s.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(price_cents),0) FROM marketplace_items`+whereOf(soldClauses), args...)
	if err := row.Scan(&st.TotalSoldCents); err != nil {
		return st, err
	}
	row = s.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(views),0) FROM marketplace_items`+whereOf(clauses), args...)
	if err := row.Scan(&st.TotalViews); err != nil {
		return st, err
	}
	return st, nil
}

type ApplicationStats struct {
	ByStatus map[string]int `json:"by_status"`
}

func (s Service) Applications(ctx context.Context, f Filter) (ApplicationStats, error) {
	byStatus, err := s.countByStatus(ctx, "worker_applications", "", f)
	if err != nil {
		return ApplicationStats{}, err
	}
	return ApplicationStats{ByStatus: byStatus}, nil
}

type EventStats struct {
	ByStatus          map[string]int `json:"by_status"`
	TotalParticipants int            `json:"total_participants"`
}

func (s Service) Events(ctx context.Context, f Filter) (EventStats, error) {
	st := EventStats{}
	byStatus, err := s.countByStatus(ctx, "community_events", "", f)
	if err != nil {
		return st, err
	}
	st.ByStatus = byStatus
	clauses, args := f.clauses("")
	query := `SELECT COUNT(*) FROM event_participants`
	if len(clauses) > 0 {
		query = `SELECT COUNT(*) FROM event_participants ep JOIN community_events ce ON ce.id=ep.event_id WHERE ` +
			strings.Join(prefixAll(clauses, "ce."), " AND ")
	}
	if err := s.DB.QueryRowContext(ctx, query, args...).Scan(&st.TotalParticipants); err != nil {
		return st, err
	}
	return st, nil
}

func prefixAll(clauses []string, prefix string) []string {
	res := make([]string, len(clauses))
	for i, c := range clauses {
		res[i] = prefix + c
	}
	return res
}

// Overview bundles every aggregate for the admin dashboard.
type Overview struct {
	Reports      ReportStats      `json:"reports"`
	Jobs         JobStats         `json:"jobs"`
	Marketplace  MarketplaceStats `json:"marketplace"`
	Applications ApplicationStats `json:"applications"`
	Events       EventStats       `json:"events"`
	Users        map[string]int   `json:"users_by_role"`
}

func (s Service) Overview(ctx context.Context, f Filter) (Overview, error) {
	var ov Overview
	var err error
	if ov.Reports, err = s.Reports(ctx, f); err != nil {
		return ov, err
	}
	if ov.Jobs, err = s.Jobs(ctx, f); err != nil {
		return ov, err
	}
	if ov.Marketplace, err = s.Marketplace(ctx, f); err != nil {
		return ov, err
	}
	if ov.Applications, err = s.Applications(ctx, f); err != nil {
		return ov, err
	}
	if ov.Events, err = s.Events(ctx, f); err != nil {
		return ov, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return ov, err
	}
	defer rows.Close()
	ov.Users = map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return ov, err
		}
		ov.Users[role] = n
	}
	return ov, rows.Err()
}
