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

type ItemCreateOptions struct {
	SellerID    string
	Title       string
	Description string
	Category    string
	PriceCents  int
}

// ListItemForSale creates a marketplace listing in pending status.
func (e Engine) ListItemForSale(ctx context.Context, opts ItemCreateOptions) (domain.MarketplaceItem, error) {
	if opts.SellerID == "" {
		return domain.MarketplaceItem{}, validationf("seller is required")
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.MarketplaceItem{}, validationf("title is required")
	}
	if opts.PriceCents < 0 {
		return domain.MarketplaceItem{}, validationf("price must be non-negative")
	}
	now := e.nowRFC3339()
	it := domain.MarketplaceItem{
		ID:          uuid.NewString(),
		SellerID:    opts.SellerID,
		Title:       opts.Title,
		Description: opts.Description,
		Category:    opts.Category,
		PriceCents:  opts.PriceCents,
		Status:      "pending",
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MarketplaceItem{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertItem(ctx, tx, it); err != nil {
		return domain.MarketplaceItem{}, err
	}
	if err := e.Events.Append(ctx, tx, "marketplace.list", domain.KindItem, it.ID, opts.SellerID, events.Payload{
		"status": it.Status, "title": it.Title,
	}); err != nil {
		return domain.MarketplaceItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MarketplaceItem{}, err
	}
	e.Metrics.Transition(domain.KindItem, "list")
	return it, nil
}

type ItemReviewOptions struct {
	ItemID          string
	Action          string // approve | reject
	RejectionReason string
	ActorID         string
	ExpectedVersion int
}

// ReviewItem approves or rejects a pending listing.
func (e Engine) ReviewItem(ctx context.Context, opts ItemReviewOptions) (domain.MarketplaceItem, error) {
	var target string
	switch opts.Action {
	case "approve":
		target = "approved"
	case "reject":
		target = "rejected"
	default:
		return domain.MarketplaceItem{}, validationf("unknown marketplace action %q", opts.Action)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MarketplaceItem{}, err
	}
	defer tx.Rollback()

	it, err := e.Repo.GetItemTx(ctx, tx, opts.ItemID)
	if err != nil {
		return domain.MarketplaceItem{}, err
	}
	if err := checkVersion(domain.KindItem, opts.ExpectedVersion, it.Version); err != nil {
		e.Metrics.Denied(domain.KindItem, "stale_version")
		return domain.MarketplaceItem{}, err
	}
	if it.Status == target {
		return it, nil
	}
	if err := ensureItemTransition(it.Status, target); err != nil {
		e.Metrics.Denied(domain.KindItem, "illegal_transition")
		return domain.MarketplaceItem{}, err
	}

	now := e.nowRFC3339()
	payload := events.Payload{"from": it.Status, "to": target}
	if target == "rejected" {
		reason := strings.TrimSpace(opts.RejectionReason)
		if reason == "" {
			return domain.MarketplaceItem{}, validationf("rejection requires a reason")
		}
		it.RejectionReason = &reason
		payload["reason"] = reason
	}
	it.Status = target
	it.UpdatedAt = now
	if err := e.updateItem(ctx, tx, &it); err != nil {
		return domain.MarketplaceItem{}, err
	}
	if err := e.Events.Append(ctx, tx, "marketplace."+opts.Action, domain.KindItem, it.ID, opts.ActorID, payload); err != nil {
		return domain.MarketplaceItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MarketplaceItem{}, err
	}
	e.Metrics.Transition(domain.KindItem, opts.Action)
	return it, nil
}

type ItemSellOptions struct {
	ItemID          string
	SellerID        string
	ExpectedVersion int
}

// MarkItemSold closes an approved listing. Only the seller can do it.
func (e Engine) MarkItemSold(ctx context.Context, opts ItemSellOptions) (domain.MarketplaceItem, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MarketplaceItem{}, err
	}
	defer tx.Rollback()

	it, err := e.Repo.GetItemTx(ctx, tx, opts.ItemID)
	if err != nil {
		return domain.MarketplaceItem{}, err
	}
	if err := checkVersion(domain.KindItem, opts.ExpectedVersion, it.Version); err != nil {
		e.Metrics.Denied(domain.KindItem, "stale_version")
		return domain.MarketplaceItem{}, err
	}
	if it.SellerID != opts.SellerID {
		e.Metrics.Denied(domain.KindItem, "seller_mismatch")
		return domain.MarketplaceItem{}, conflictf("listing %s belongs to another seller", it.ID)
	}
	if it.Status == "sold" {
		return it, nil
	}
	if err := ensureItemTransition(it.Status, "sold"); err != nil {
		e.Metrics.Denied(domain.KindItem, "illegal_transition")
		return domain.MarketplaceItem{}, err
	}
	now := e.nowRFC3339()
	it.Status = "sold"
	it.SoldAt = &now
	it.UpdatedAt = now
	if err := e.updateItem(ctx, tx, &it); err != nil {
		return domain.MarketplaceItem{}, err
	}
	if err := e.Events.Append(ctx, tx, "marketplace.sold", domain.KindItem, it.ID, opts.SellerID, events.Payload{
		"from": "approved", "to": "sold",
	}); err != nil {
		return domain.MarketplaceItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MarketplaceItem{}, err
	}
	e.Metrics.Transition(domain.KindItem, "sold")
	return it, nil
}

func (e Engine) updateItem(ctx context.Context, tx *sql.Tx, it *domain.MarketplaceItem) error {
	if err := e.Repo.UpdateItem(ctx, tx, *it); err != nil {
		if err == repo.ErrStale {
			return conflictf("listing %s was modified concurrently", it.ID)
		}
		return err
	}
	it.Version++
	return nil
}
