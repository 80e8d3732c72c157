package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"wasteflow/internal/app"
	"wasteflow/internal/config"
	"wasteflow/internal/db"
	"wasteflow/internal/migrate"
	"wasteflow/internal/repo"
	"wasteflow/internal/workflow"
)

type testEnv struct {
	Engine workflow.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
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
	eng := workflow.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := app.SeedRBAC(ctx, conn, cfg); err != nil {
		t.Fatalf("seed rbac: %v", err)
	}
	seed := []workflow.UserCreateOptions{
		{ID: "admin-1", Name: "Admin", Email: "admin@example.com", Role: "admin"},
		{ID: "citizen-1", Name: "Citizen", Email: "citizen@example.com", Role: "citizen"},
		{ID: "citizen-2", Name: "Other Citizen", Email: "citizen2@example.com", Role: "citizen"},
		{ID: "worker-1", Name: "Worker", Email: "worker@example.com", Role: "worker"},
		{ID: "worker-2", Name: "Other Worker", Email: "worker2@example.com", Role: "worker"},
		{ID: "champion-1", Name: "Champion", Email: "champion@example.com", Role: "champion"},
	}
	for _, u := range seed {
		if _, err := eng.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func submitReport(t *testing.T, env testEnv, wasteType string) string {
	t.Helper()
	rep, err := env.Engine.SubmitReport(env.Ctx, workflow.ReportCreateOptions{
		ReporterID: "citizen-1",
		WasteType:  wasteType,
		Location:   "riverbank",
		WeightKG:   2.5,
	})
	if err != nil {
		t.Fatalf("submit report: %v", err)
	}
	return rep.ID
}

func TestReportVerifyAwardsConfiguredPoints(t *testing.T) {
	env := newTestEnv(t)
	id := submitReport(t, env, "plastic")

	rep, err := env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "verify", ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rep.Status != "verified" {
		t.Fatalf("expected verified, got %s", rep.Status)
	}
	if rep.PointsAwarded == nil || *rep.PointsAwarded != 30 {
		t.Fatalf("expected default 30 points for plastic, got %v", rep.PointsAwarded)
	}
	if rep.VerifiedAt == nil {
		t.Fatalf("expected verified_at to be set")
	}

	// verifying again is a no-op, points stay as they are
	again, err := env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "verify", ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("repeat verify: %v", err)
	}
	if again.Version != rep.Version {
		t.Fatalf("repeat verify bumped version %d -> %d", rep.Version, again.Version)
	}
	if *again.PointsAwarded != 30 {
		t.Fatalf("repeat verify changed points to %d", *again.PointsAwarded)
	}

	// verified reports cannot be rejected
	_, err = env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "reject", RejectionReason: "too late", ActorID: "admin-1",
	})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReportVerifyExplicitPoints(t *testing.T) {
	env := newTestEnv(t)
	id := submitReport(t, env, "mixed")
	points := 99
	rep, err := env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "verify", Points: &points, ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if *rep.PointsAwarded != 99 {
		t.Fatalf("expected 99 points, got %d", *rep.PointsAwarded)
	}

	id = submitReport(t, env, "mixed")
	negative := -5
	_, err = env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "verify", Points: &negative, ActorID: "admin-1",
	})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for negative points, got %v", err)
	}
}

func TestReportRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	id := submitReport(t, env, "glass")
	_, err := env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "reject", RejectionReason: "   ", ActorID: "admin-1",
	})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	rep, err := env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "reject", RejectionReason: "duplicate of another report", ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rep.Status != "rejected" || rep.RejectionReason == nil {
		t.Fatalf("expected rejected with reason, got %s %v", rep.Status, rep.RejectionReason)
	}
}

func TestReportVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	id := submitReport(t, env, "metal")
	_, err := env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "verify", ActorID: "admin-1", ExpectedVersion: 7,
	})
	var cErr workflow.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected conflict error for stale version, got %v", err)
	}
}

func TestCompleteReportBindsWorker(t *testing.T) {
	env := newTestEnv(t)
	id := submitReport(t, env, "organic")
	if _, err := env.Engine.ReviewReport(env.Ctx, workflow.ReportReviewOptions{
		ReportID: id, Action: "verify", ActorID: "admin-1",
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}

	rep, err := env.Engine.CompleteReport(env.Ctx, workflow.ReportCompleteOptions{
		ReportID: id, WorkerID: "worker-1",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if rep.Status != "worker_completed" || rep.WorkerID == nil || *rep.WorkerID != "worker-1" {
		t.Fatalf("unexpected state after complete: %+v", rep)
	}

	// same worker retrying is a no-op
	again, err := env.Engine.CompleteReport(env.Ctx, workflow.ReportCompleteOptions{
		ReportID: id, WorkerID: "worker-1",
	})
	if err != nil {
		t.Fatalf("repeat complete: %v", err)
	}
	if again.Version != rep.Version {
		t.Fatalf("repeat complete bumped version")
	}

	// a different worker gets a conflict
	_, err = env.Engine.CompleteReport(env.Ctx, workflow.ReportCompleteOptions{
		ReportID: id, WorkerID: "worker-2",
	})
	var cErr workflow.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected conflict for second worker, got %v", err)
	}
}

func createVerifiedJob(t *testing.T, env testEnv) string {
	t.Helper()
	j, err := env.Engine.CreateJob(env.Ctx, workflow.JobCreateOptions{
		ClientID: "citizen-1",
		Title:    "Clear dump site",
		Category: "bulk",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := env.Engine.ReviewJob(env.Ctx, workflow.JobReviewOptions{
		JobID: j.ID, Action: "verify", ActorID: "admin-1",
	}); err != nil {
		t.Fatalf("verify job: %v", err)
	}
	return j.ID
}

func TestJobLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := createVerifiedJob(t, env)

	j, err := env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "accept", WorkerID: "worker-1"})
	if err != nil || j.Status != "assigned" {
		t.Fatalf("accept: %v status=%s", err, j.Status)
	}
	if j.WorkerID == nil || *j.WorkerID != "worker-1" {
		t.Fatalf("expected worker binding")
	}

	// another worker cannot touch an assigned job
	_, err = env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "start", WorkerID: "worker-2"})
	var cErr workflow.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected conflict for second worker, got %v", err)
	}

	j, err = env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "start", WorkerID: "worker-1"})
	if err != nil || j.Status != "in_progress" {
		t.Fatalf("start: %v status=%s", err, j.Status)
	}
	j, err = env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "complete", WorkerID: "worker-1"})
	if err != nil || j.Status != "completed" {
		t.Fatalf("complete: %v status=%s", err, j.Status)
	}
	if j.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}

	// completing twice is a no-op
	again, err := env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "complete", WorkerID: "worker-1"})
	if err != nil {
		t.Fatalf("repeat complete: %v", err)
	}
	if again.Version != j.Version {
		t.Fatalf("repeat complete bumped version")
	}
}

func TestJobCompleteWithoutStart(t *testing.T) {
	env := newTestEnv(t)
	id := createVerifiedJob(t, env)

	j, err := env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "accept", WorkerID: "worker-1"})
	if err != nil || j.Status != "assigned" {
		t.Fatalf("accept: %v status=%s", err, j.Status)
	}
	// the start step is optional, completing from assigned works
	j, err = env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "complete", WorkerID: "worker-1"})
	if err != nil {
		t.Fatalf("complete from assigned: %v", err)
	}
	if j.Status != "completed" || j.CompletedAt == nil {
		t.Fatalf("unexpected state after complete: %+v", j)
	}
}

func TestJobAcceptRequiresVerified(t *testing.T) {
	env := newTestEnv(t)
	j, err := env.Engine.CreateJob(env.Ctx, workflow.JobCreateOptions{ClientID: "citizen-1", Title: "Pending job"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: j.ID, Action: "accept", WorkerID: "worker-1"})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error accepting a pending job, got %v", err)
	}
}

func TestJobDeleteRules(t *testing.T) {
	env := newTestEnv(t)
	id := createVerifiedJob(t, env)
	if _, err := env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "accept", WorkerID: "worker-1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// an assigned job cannot be deleted
	err := env.Engine.DeleteJob(env.Ctx, workflow.JobDeleteOptions{JobID: id, ActorID: "admin-1"})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error deleting assigned job, got %v", err)
	}

	j, err := env.Engine.CreateJob(env.Ctx, workflow.JobCreateOptions{ClientID: "citizen-1", Title: "Abandoned"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// a non-owner bound by ownership cannot delete
	err = env.Engine.DeleteJob(env.Ctx, workflow.JobDeleteOptions{JobID: j.ID, ActorID: "citizen-2", RequireOwner: true})
	if err == nil {
		t.Fatalf("expected ownership error")
	}
	if err := env.Engine.DeleteJob(env.Ctx, workflow.JobDeleteOptions{JobID: j.ID, ActorID: "citizen-1", RequireOwner: true}); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetJob(env.Ctx, j.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected job gone, got %v", err)
	}
}

func TestMarketplaceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.ListItemForSale(env.Ctx, workflow.ItemCreateOptions{
		SellerID: "citizen-1", Title: "Compost bin", PriceCents: 1500,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	// selling before approval is illegal
	_, err = env.Engine.MarkItemSold(env.Ctx, workflow.ItemSellOptions{ItemID: it.ID, SellerID: "citizen-1"})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error selling pending item, got %v", err)
	}

	it, err = env.Engine.ReviewItem(env.Ctx, workflow.ItemReviewOptions{ItemID: it.ID, Action: "approve", ActorID: "admin-1"})
	if err != nil || it.Status != "approved" {
		t.Fatalf("approve: %v status=%s", err, it.Status)
	}

	// only the seller can mark it sold
	_, err = env.Engine.MarkItemSold(env.Ctx, workflow.ItemSellOptions{ItemID: it.ID, SellerID: "citizen-2"})
	if err == nil {
		t.Fatalf("expected error for non-seller")
	}

	it, err = env.Engine.MarkItemSold(env.Ctx, workflow.ItemSellOptions{ItemID: it.ID, SellerID: "citizen-1"})
	if err != nil || it.Status != "sold" || it.SoldAt == nil {
		t.Fatalf("sold: %v status=%s", err, it.Status)
	}

	// selling twice is a no-op
	again, err := env.Engine.MarkItemSold(env.Ctx, workflow.ItemSellOptions{ItemID: it.ID, SellerID: "citizen-1"})
	if err != nil || again.Version != it.Version {
		t.Fatalf("repeat sold: %v", err)
	}
}

func TestMarketplaceRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	it, err := env.Engine.ListItemForSale(env.Ctx, workflow.ItemCreateOptions{
		SellerID: "citizen-1", Title: "Broken chair", PriceCents: 100,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.Engine.ReviewItem(env.Ctx, workflow.ItemReviewOptions{ItemID: it.ID, Action: "reject", ActorID: "admin-1"})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplicationVerifyPromotesWorker(t *testing.T) {
	env := newTestEnv(t)
	app, err := env.Engine.SubmitApplication(env.Ctx, workflow.ApplicationCreateOptions{
		ApplicantID: "citizen-1", FullName: "A Citizen", Phone: "555-0100",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// one live application per applicant
	_, err = env.Engine.SubmitApplication(env.Ctx, workflow.ApplicationCreateOptions{
		ApplicantID: "citizen-1", FullName: "A Citizen",
	})
	var cErr workflow.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected conflict for duplicate application, got %v", err)
	}

	app, err = env.Engine.ReviewApplication(env.Ctx, workflow.ApplicationReviewOptions{
		ApplicationID: app.ID, Action: "verify", ActorID: "admin-1",
	})
	if err != nil || app.Status != "verified" {
		t.Fatalf("verify: %v status=%s", err, app.Status)
	}
	u, err := env.Engine.Repo.GetUser(env.Ctx, "citizen-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Role != "worker" {
		t.Fatalf("expected promotion to worker, got %s", u.Role)
	}
	roles, err := env.Engine.Repo.UserRoles(env.Ctx, "citizen-1")
	if err != nil {
		t.Fatalf("user roles: %v", err)
	}
	found := false
	for _, r := range roles {
		if r == "worker" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected worker role grant, got %v", roles)
	}

	// terminal: a verified application cannot be rejected
	_, err = env.Engine.ReviewApplication(env.Ctx, workflow.ApplicationReviewOptions{
		ApplicationID: app.ID, Action: "reject", RejectionReason: "changed our mind", ActorID: "admin-1",
	})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEventLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ev, err := env.Engine.CreateEvent(env.Ctx, workflow.EventCreateOptions{
		ChampionID: "champion-1", Title: "River cleanup",
	})
	if err != nil || ev.Status != "upcoming" {
		t.Fatalf("create: %v status=%s", err, ev.Status)
	}

	// upcoming cannot jump straight to completed
	_, err = env.Engine.SetEventStatus(env.Ctx, workflow.EventStatusOptions{EventID: ev.ID, Status: "completed", ActorID: "champion-1"})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	ev, err = env.Engine.SetEventStatus(env.Ctx, workflow.EventStatusOptions{EventID: ev.ID, Status: "ongoing", ActorID: "champion-1"})
	if err != nil || ev.Status != "ongoing" {
		t.Fatalf("to ongoing: %v", err)
	}
	ev, err = env.Engine.SetEventStatus(env.Ctx, workflow.EventStatusOptions{EventID: ev.ID, Status: "completed", ActorID: "champion-1"})
	if err != nil || ev.Status != "completed" {
		t.Fatalf("to completed: %v", err)
	}

	// completed events cannot be joined
	_, err = env.Engine.JoinEvent(env.Ctx, workflow.EventJoinOptions{EventID: ev.ID, UserID: "citizen-1"})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error joining completed event, got %v", err)
	}

	// reopening is allowed
	ev, err = env.Engine.SetEventStatus(env.Ctx, workflow.EventStatusOptions{EventID: ev.ID, Status: "ongoing", ActorID: "champion-1"})
	if err != nil || ev.Status != "ongoing" {
		t.Fatalf("reopen: %v", err)
	}

	ev, err = env.Engine.JoinEvent(env.Ctx, workflow.EventJoinOptions{EventID: ev.ID, UserID: "citizen-1"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(ev.Participants) != 1 {
		t.Fatalf("expected one participant, got %v", ev.Participants)
	}
	// joining twice does not duplicate
	ev, err = env.Engine.JoinEvent(env.Ctx, workflow.EventJoinOptions{EventID: ev.ID, UserID: "citizen-1"})
	if err != nil {
		t.Fatalf("repeat join: %v", err)
	}
	if len(ev.Participants) != 1 {
		t.Fatalf("expected one participant after repeat join, got %v", ev.Participants)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	repID := submitReport(t, env, "plastic")
	j, err := env.Engine.CreateJob(env.Ctx, workflow.JobCreateOptions{ClientID: "citizen-1", Title: "Owned job"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	// nobody deletes themselves
	err = env.Engine.DeleteUser(env.Ctx, workflow.UserDeleteOptions{UserID: "admin-1", ActorID: "admin-1"})
	var vErr workflow.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for self-delete, got %v", err)
	}

	if err := env.Engine.DeleteUser(env.Ctx, workflow.UserDeleteOptions{UserID: "citizen-1", ActorID: "admin-1"}); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := env.Engine.Repo.GetReport(env.Ctx, repID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected report gone, got %v", err)
	}
	if _, err := env.Engine.Repo.GetJob(env.Ctx, j.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected job gone, got %v", err)
	}
	if _, err := env.Engine.Repo.GetUser(env.Ctx, "citizen-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}
}

func TestWorkerDetachOnUserDelete(t *testing.T) {
	env := newTestEnv(t)
	id := createVerifiedJob(t, env)
	if _, err := env.Engine.WorkJob(env.Ctx, workflow.JobWorkOptions{JobID: id, Action: "accept", WorkerID: "worker-1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := env.Engine.DeleteUser(env.Ctx, workflow.UserDeleteOptions{UserID: "worker-1", ActorID: "admin-1"}); err != nil {
		t.Fatalf("delete worker: %v", err)
	}
	j, err := env.Engine.Repo.GetJob(env.Ctx, id)
	if err != nil {
		t.Fatalf("job should survive worker deletion: %v", err)
	}
	if j.WorkerID != nil {
		t.Fatalf("expected worker detached, got %v", *j.WorkerID)
	}
}
