package repo

import (
	"context"
	"database/sql"
	"strings"

	"wasteflow/internal/domain"
)

const itemColumns = `id,seller_id,title,description,category,price_cents,views,status,rejection_reason,sold_at,created_at,updated_at,version`

func scanItem(scan func(dest ...any) error) (domain.MarketplaceItem, error) {
	var it domain.MarketplaceItem
	var description, category, rejection, soldAt sql.NullString
	err := scan(&it.ID, &it.SellerID, &it.Title, &description, &category, &it.PriceCents, &it.Views,
		&it.Status, &rejection, &soldAt, &it.CreatedAt, &it.UpdatedAt, &it.Version)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	if err != nil {
		return it, err
	}
	if description.Valid {
		it.Description = description.String
	}
	if category.Valid {
		it.Category = category.String
	}
	if rejection.Valid {
		it.RejectionReason = &rejection.String
	}
	if soldAt.Valid {
		it.SoldAt = &soldAt.String
	}
	return it, nil
}

func (r Repo) InsertItem(ctx context.Context, tx *sql.Tx, it domain.MarketplaceItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO marketplace_items(`+itemColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		it.ID, it.SellerID, it.Title, nullable(it.Description), nullable(it.Category), it.PriceCents, it.Views,
		it.Status, nullableStringPtr(it.RejectionReason), nullableStringPtr(it.SoldAt), it.CreatedAt, it.UpdatedAt, it.Version)
	return err
}

func (r Repo) GetItem(ctx context.Context, id string) (domain.MarketplaceItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM marketplace_items WHERE id=?`, id)
	return scanItem(row.Scan)
}

func (r Repo) GetItemTx(ctx context.Context, tx *sql.Tx, id string) (domain.MarketplaceItem, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM marketplace_items WHERE id=?`, id)
	return scanItem(row.Scan)
}

func (r Repo) UpdateItem(ctx context.Context, tx *sql.Tx, it domain.MarketplaceItem) error {
	res, err := tx.ExecContext(ctx, `UPDATE marketplace_items SET title=?, description=?, category=?, price_cents=?, views=?, status=?, rejection_reason=?, sold_at=?, updated_at=?, version=version+1 WHERE id=? AND version=?`,
		it.Title, nullable(it.Description), nullable(it.Category), it.PriceCents, it.Views, it.Status,
		nullableStringPtr(it.RejectionReason), nullableStringPtr(it.SoldAt), it.UpdatedAt, it.ID, it.Version)
	if err != nil {
		return err
	}
	return guardAffected(ctx, tx, res, "marketplace_items", it.ID)
}

// BumpItemViews increments the view counter without touching version; views
// are not part of the reviewed state.
func (r Repo) BumpItemViews(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE marketplace_items SET views=views+1 WHERE id=?`, id)
	return err
}

type ItemFilters struct {
	Status   string
	SellerID string
	Category string
	Limit    int
}

func (r Repo) ListItems(ctx context.Context, f ItemFilters) ([]domain.MarketplaceItem, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.SellerID != "" {
		clauses = append(clauses, "seller_id=?")
		args = append(args, f.SellerID)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + itemColumns + ` FROM marketplace_items ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MarketplaceItem
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}
