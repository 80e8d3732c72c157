package stats_test

import (
	"context"
	"testing"
	"time"

	"wasteflow/internal/app"
	"wasteflow/internal/config"
	"wasteflow/internal/db"
	"wasteflow/internal/migrate"
	"wasteflow/internal/stats"
	"wasteflow/internal/workflow"
)

func newStatsEnv(t *testing.T) (workflow.Engine, stats.Service, context.Context) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	ctx := context.Background()
	if err := app.SeedRBAC(ctx, conn, cfg); err != nil {
		t.Fatalf("seed rbac: %v", err)
	}
	eng := workflow.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	for _, u := range []workflow.UserCreateOptions{
		{ID: "admin-1", Name: "Admin", Email: "admin@example.com", Role: "admin"},
		{ID: "citizen-1", Name: "Citizen", Email: "citizen@example.com", Role: "citizen"},
	} {
		if _, err := eng.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return eng, stats.New(conn), ctx
}

func TestReportStatsConsistency(t *testing.T) {
	eng, svc, ctx := newStatsEnv(t)
	submitted := 0
	verified := 0
	points := 0
	for i, wasteType := range []string{"plastic", "plastic", "organic", "glass"} {
		rep, err := eng.SubmitReport(ctx, workflow.ReportCreateOptions{
			ReporterID: "citizen-1", WasteType: wasteType, WeightKG: 1.0,
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		submitted++
		if i%2 == 0 {
			out, err := eng.ReviewReport(ctx, workflow.ReportReviewOptions{
				ReportID: rep.ID, Action: "verify", ActorID: "admin-1",
			})
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			verified++
			points += *out.PointsAwarded
		}
	}

	st, err := svc.Reports(ctx, stats.Filter{})
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	total := 0
	for _, n := range st.ByStatus {
		total += n
	}
	if total != submitted {
		t.Fatalf("by_status sums to %d, submitted %d", total, submitted)
	}
	if st.ByStatus["verified"] != verified {
		t.Fatalf("expected %d verified, got %d", verified, st.ByStatus["verified"])
	}
	if st.TotalPoints != points {
		t.Fatalf("expected %d points, got %d", points, st.TotalPoints)
	}
	if st.TotalWeightKG != float64(verified) {
		t.Fatalf("expected verified weight %d, got %v", verified, st.TotalWeightKG)
	}

	breakdown, err := svc.ReportTypeBreakdown(ctx, stats.Filter{})
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if breakdown["plastic"] != 2 || breakdown["organic"] != 1 || breakdown["glass"] != 1 {
		t.Fatalf("unexpected breakdown: %v", breakdown)
	}

	// category filter narrows to the waste type
	filtered, err := svc.Reports(ctx, stats.Filter{Category: "plastic"})
	if err != nil {
		t.Fatalf("filtered reports: %v", err)
	}
	total = 0
	for _, n := range filtered.ByStatus {
		total += n
	}
	if total != 2 {
		t.Fatalf("expected 2 plastic reports, got %d", total)
	}
}

func TestDateRangeFilter(t *testing.T) {
	eng, svc, ctx := newStatsEnv(t)
	if _, err := eng.SubmitReport(ctx, workflow.ReportCreateOptions{
		ReporterID: "citizen-1", WasteType: "metal",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	in, err := svc.Reports(ctx, stats.Filter{From: "2025-06-01T00:00:00Z", To: "2025-06-02T00:00:00Z"})
	if err != nil {
		t.Fatalf("in-range: %v", err)
	}
	if in.ByStatus["pending"] != 1 {
		t.Fatalf("expected report inside range, got %v", in.ByStatus)
	}

	out, err := svc.Reports(ctx, stats.Filter{From: "2025-07-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("out-of-range: %v", err)
	}
	if len(out.ByStatus) != 0 {
		t.Fatalf("expected nothing after July, got %v", out.ByStatus)
	}
}

func TestOverviewBundlesAllAggregates(t *testing.T) {
	eng, svc, ctx := newStatsEnv(t)
	if _, err := eng.CreateJob(ctx, workflow.JobCreateOptions{
		ClientID: "citizen-1", Title: "Pickup", Category: "bulk",
	}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	it, err := eng.ListItemForSale(ctx, workflow.ItemCreateOptions{
		SellerID: "citizen-1", Title: "Planter", PriceCents: 500,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := eng.ReviewItem(ctx, workflow.ItemReviewOptions{ItemID: it.ID, Action: "approve", ActorID: "admin-1"}); err != nil {
		t.Fatalf("approve item: %v", err)
	}
	if _, err := eng.MarkItemSold(ctx, workflow.ItemSellOptions{ItemID: it.ID, SellerID: "citizen-1"}); err != nil {
		t.Fatalf("sell item: %v", err)
	}
	ev, err := eng.CreateEvent(ctx, workflow.EventCreateOptions{ChampionID: "citizen-1", Title: "Drive"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := eng.JoinEvent(ctx, workflow.EventJoinOptions{EventID: ev.ID, UserID: "citizen-1"}); err != nil {
		t.Fatalf("join event: %v", err)
	}

	ov, err := svc.Overview(ctx, stats.Filter{})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Jobs.ByCategory["bulk"] != 1 {
		t.Fatalf("unexpected job categories: %v", ov.Jobs.ByCategory)
	}
	if ov.Marketplace.TotalSoldCents != 500 {
		t.Fatalf("expected 500 sold cents, got %d", ov.Marketplace.TotalSoldCents)
	}
	if ov.Events.TotalParticipants != 1 {
		t.Fatalf("expected 1 participant, got %d", ov.Events.TotalParticipants)
	}
	if ov.Users["admin"] != 1 || ov.Users["citizen"] != 1 {
		t.Fatalf("unexpected users by role: %v", ov.Users)
	}
}
