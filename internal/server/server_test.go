package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"wasteflow/internal/app"
	"wasteflow/internal/config"
	"wasteflow/internal/db"
	"wasteflow/internal/domain"
	"wasteflow/internal/migrate"
	"wasteflow/internal/stats"
	"wasteflow/internal/workflow"
	"wasteflow/internal/workflow/auth"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine workflow.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	ctx := context.Background()
	if err := app.SeedRBAC(ctx, conn, cfg); err != nil {
		t.Fatalf("seed rbac: %v", err)
	}
	e := workflow.New(conn, cfg)
	seed := []workflow.UserCreateOptions{
		{ID: "admin-1", Name: "Admin", Email: "admin@example.com", Role: "admin"},
		{ID: "citizen-1", Name: "Citizen", Email: "citizen@example.com", Role: "citizen"},
		{ID: "worker-1", Name: "Worker", Email: "worker@example.com", Role: "worker"},
	}
	for _, u := range seed {
		if _, err := e.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	handler, err := New(Config{
		Engine: e,
		Stats:  stats.New(conn),
		Guard:  auth.New(e.Repo),
		Auth:   AuthConfig{JWTSecret: testJWTSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func signToken(t *testing.T, userID string, roles, permissions []string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": userID}
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	if len(permissions) > 0 {
		claims["permissions"] = permissions
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestReportVerifyFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	citizen := signToken(t, "citizen-1", []string{"citizen"}, nil)
	admin := signToken(t, "admin-1", []string{"admin"}, nil)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/reports", map[string]any{
		"wasteType":   "plastic",
		"description": "bottles on the riverbank",
		"location":    "riverbank",
		"weightKg":    3.0,
	}, citizen)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create report status %d: %s", res.StatusCode, string(data))
	}
	var created domain.WasteReport
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if created.Status != "pending" {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	// citizens cannot review
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/admin/reports", map[string]any{
		"reportId": created.ID,
		"action":   "verify",
	}, citizen)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for citizen review, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == "" {
		t.Fatalf("expected error envelope, got %s", string(data))
	}
	// the denied mutation must not have touched the report
	rep, err := srv.Engine.Repo.GetReport(context.Background(), created.ID)
	if err != nil || rep.Status != "pending" {
		t.Fatalf("report changed by denied request: %v %s", err, rep.Status)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/admin/reports", map[string]any{
		"reportId": created.ID,
		"action":   "verify",
	}, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", res.StatusCode, string(data))
	}
	var verified domain.WasteReport
	if err := json.Unmarshal(data, &verified); err != nil {
		t.Fatalf("unmarshal verified: %v", err)
	}
	if verified.Status != "verified" || verified.PointsAwarded == nil || *verified.PointsAwarded != 30 {
		t.Fatalf("unexpected verified report: %+v", verified)
	}

	// admin listing includes stats
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/admin/reports", nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin reports status %d: %s", res.StatusCode, string(data))
	}
	var listing AdminReportsResponse
	if err := json.Unmarshal(data, &listing); err != nil {
		t.Fatalf("unmarshal listing: %v", err)
	}
	if len(listing.Reports) != 1 || listing.Stats.ByStatus["verified"] != 1 {
		t.Fatalf("unexpected listing: %+v", listing)
	}
}

func TestWorkerJobFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	ctx := context.Background()
	admin := signToken(t, "admin-1", []string{"admin"}, nil)
	worker := signToken(t, "worker-1", []string{"worker"}, nil)

	j, err := srv.Engine.CreateJob(ctx, workflow.JobCreateOptions{ClientID: "citizen-1", Title: "Clear alley"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/api/admin/jobs", map[string]any{
		"jobId":  j.ID,
		"status": "verified",
	}, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin verify job status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/worker/jobs", nil, worker)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("worker jobs status %d: %s", res.StatusCode, string(data))
	}
	var jobs WorkerJobsResponse
	if err := json.Unmarshal(data, &jobs); err != nil {
		t.Fatalf("unmarshal jobs: %v", err)
	}
	if len(jobs.Open) != 1 || len(jobs.Mine) != 0 {
		t.Fatalf("unexpected worker jobs: %+v", jobs)
	}

	for _, action := range []string{"accept", "start", "complete"} {
		res, data = doJSON(t, client, http.MethodPut, srv.URL+"/api/worker/jobs", map[string]any{
			"jobId":  j.ID,
			"action": action,
		}, worker)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s status %d: %s", action, res.StatusCode, string(data))
		}
	}
	var done domain.Job
	if err := json.Unmarshal(data, &done); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if done.Status != "completed" {
		t.Fatalf("expected completed, got %s", done.Status)
	}
}

func TestAdminGetApplication(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	admin := signToken(t, "admin-1", []string{"admin"}, nil)
	citizen := signToken(t, "citizen-1", []string{"citizen"}, nil)

	wa, err := srv.Engine.SubmitApplication(ctx, workflow.ApplicationCreateOptions{
		ApplicantID: "citizen-1", FullName: "A Citizen",
	})
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/admin/worker-applications/"+wa.ID, nil, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get application status %d: %s", res.StatusCode, string(data))
	}
	var fetched domain.WorkerApplication
	if err := json.Unmarshal(data, &fetched); err != nil {
		t.Fatalf("unmarshal application: %v", err)
	}
	if fetched.ID != wa.ID || fetched.Status != "pending" {
		t.Fatalf("unexpected application: %+v", fetched)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/admin/worker-applications/"+wa.ID, nil, citizen)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for citizen, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/admin/worker-applications/missing", nil, admin)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", res.StatusCode)
	}
}

func TestUnauthenticatedEnvelope(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/reports", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if _, ok := envelope["error"].(string); !ok {
		t.Fatalf("expected {\"error\": string}, got %s", string(data))
	}
}

func TestInvalidTransitionStatus(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	admin := signToken(t, "admin-1", []string{"admin"}, nil)

	ev, err := srv.Engine.CreateEvent(ctx, workflow.EventCreateOptions{ChampionID: "citizen-1", Title: "Drive"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/api/admin/events", map[string]any{
		"eventId": ev.ID,
		"status":  "completed",
	}, admin)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for illegal transition, got %d: %s", res.StatusCode, string(data))
	}
}
