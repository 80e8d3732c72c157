package wasteflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal WasteFlow HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL should include the API
// base path, e.g. "http://localhost:8080/api".
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// WasteReport represents the API report model (partial).
type WasteReport struct {
	ID              string `json:"id"`
	ReporterID      string `json:"reporter_id"`
	WasteType       string `json:"waste_type"`
	Status          string `json:"status"`
	PointsAwarded   *int   `json:"points_awarded,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	Version         int    `json:"version"`
}

// Job represents the API job model (partial).
type Job struct {
	ID       string  `json:"id"`
	ClientID string  `json:"client_id"`
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	WorkerID *string `json:"worker_id,omitempty"`
	Version  int     `json:"version"`
}

// MarketplaceItem represents the API listing model (partial).
type MarketplaceItem struct {
	ID         string `json:"id"`
	SellerID   string `json:"seller_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	PriceCents int    `json:"price_cents"`
	Version    int    `json:"version"`
}

// Event represents the API community event model (partial).
type Event struct {
	ID           string   `json:"id"`
	ChampionID   string   `json:"champion_id"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	Participants []string `json:"participants,omitempty"`
	Version      int      `json:"version"`
}

// APIError wraps non-2xx responses. Message carries the server's error
// field when the body parses as the standard envelope.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d error=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SubmitReport files a waste report as the authenticated citizen.
func (c *Client) SubmitReport(ctx context.Context, wasteType, description, location string, weightKG float64) (WasteReport, error) {
	body := map[string]any{
		"wasteType":   wasteType,
		"description": description,
		"location":    location,
		"weightKg":    weightKG,
	}
	var resp WasteReport
	err := c.do(ctx, http.MethodPost, "reports", body, &resp)
	return resp, err
}

// Reports lists the caller's reports.
func (c *Client) Reports(ctx context.Context) ([]WasteReport, error) {
	var resp []WasteReport
	err := c.do(ctx, http.MethodGet, "reports", nil, &resp)
	return resp, err
}

// ReviewReport verifies or rejects a report (admin). points and version
// are optional; pass nil / 0 to use the server defaults.
func (c *Client) ReviewReport(ctx context.Context, reportID, action string, points *int, rejectionReason string, version int) (WasteReport, error) {
	body := map[string]any{
		"reportId": reportID,
		"action":   action,
	}
	if points != nil {
		body["points"] = *points
	}
	if rejectionReason != "" {
		body["rejectionReason"] = rejectionReason
	}
	if version > 0 {
		body["version"] = version
	}
	var resp WasteReport
	err := c.do(ctx, http.MethodPut, "admin/reports", body, &resp)
	return resp, err
}

// WorkerJobs returns open jobs plus the worker's own assignments.
func (c *Client) WorkerJobs(ctx context.Context) (open, mine []Job, err error) {
	var resp struct {
		Open []Job `json:"open"`
		Mine []Job `json:"mine"`
	}
	err = c.do(ctx, http.MethodGet, "worker/jobs", nil, &resp)
	return resp.Open, resp.Mine, err
}

// WorkJob accepts, starts or completes a job as the authenticated worker.
func (c *Client) WorkJob(ctx context.Context, jobID, action string, version int) (Job, error) {
	body := map[string]any{
		"jobId":  jobID,
		"action": action,
	}
	if version > 0 {
		body["version"] = version
	}
	var resp Job
	err := c.do(ctx, http.MethodPut, "worker/jobs", body, &resp)
	return resp, err
}

// CompleteReport marks a verified report as collected.
func (c *Client) CompleteReport(ctx context.Context, reportID string, version int) (WasteReport, error) {
	body := map[string]any{"reportId": reportID}
	if version > 0 {
		body["version"] = version
	}
	var resp WasteReport
	err := c.do(ctx, http.MethodPost, "worker/complete-report", body, &resp)
	return resp, err
}

// VerifyItem approves or rejects a marketplace listing (admin).
func (c *Client) VerifyItem(ctx context.Context, itemID, action, rejectionReason string, version int) (MarketplaceItem, error) {
	body := map[string]any{"action": action}
	if rejectionReason != "" {
		body["rejectionReason"] = rejectionReason
	}
	if version > 0 {
		body["version"] = version
	}
	var resp MarketplaceItem
	endpoint := fmt.Sprintf("admin/marketplace/%s/verify", url.PathEscape(itemID))
	err := c.do(ctx, http.MethodPut, endpoint, body, &resp)
	return resp, err
}

// JoinEvent registers the caller as a participant.
func (c *Client) JoinEvent(ctx context.Context, eventID string) (Event, error) {
	var resp Event
	endpoint := fmt.Sprintf("events/%s/join", url.PathEscape(eventID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Stats returns the dashboard overview as a raw document.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, "admin/stats", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Message = envelope.Error
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
