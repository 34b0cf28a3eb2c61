package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/frontsight/frontsight/internal/config"
	"github.com/frontsight/frontsight/internal/httpserver"
	"github.com/frontsight/frontsight/internal/store"
)

////////////////////////////////////////////////////////////////////////////////
// INTEGRATION TEST SUITE
//
// These tests validate the service end-to-end:
//
//   Client → HTTP API → Auth → Store → Query → Response
//
// Each test boots the real router over a fresh in-memory SQLite database,
// so the suite is self-contained and needs no running containers.
////////////////////////////////////////////////////////////////////////////////

// newTestServer boots the full router over a migrated in-memory store.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.Open("sqlite://:memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	router := httpserver.NewRouter(config.Config{DBURL: "sqlite://:memory:"}, st)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

////////////////////////////////////////////////////////////////////////////////
// GENERIC HTTP HELPERS
////////////////////////////////////////////////////////////////////////////////

// doJSON performs a request with an optional JSON body and API key.
func doJSON(t *testing.T, method, rawURL, apiKey string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, rawURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, rawURL, err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

// decode unmarshals a JSON response body or fails the test.
func decode(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("invalid JSON %q: %v", b, err)
	}
}

type projectJSON struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	APIKey      string  `json:"api_key"`
}

// createProject registers a project over the API and returns it.
func createProject(t *testing.T, base, name string) projectJSON {
	t.Helper()
	status, body := doJSON(t, "POST", base+"/api/projects", "", map[string]any{"name": name})
	if status != http.StatusCreated {
		t.Fatalf("create project expected 201 got %d (%s)", status, body)
	}
	var p projectJSON
	decode(t, body, &p)
	return p
}

// ingestEvent posts one event and returns the response status and body.
func ingestEvent(t *testing.T, base, apiKey string, payload map[string]any) (int, []byte) {
	t.Helper()
	return doJSON(t, "POST", base+"/api/events", apiKey, payload)
}

////////////////////////////////////////////////////////////////////////////////
// HEALTH & READINESS TESTS
////////////////////////////////////////////////////////////////////////////////

// Health endpoint = liveness check (server process running).
func TestHealth_ReturnsOK(t *testing.T) {
	srv := newTestServer(t)
	status, _ := doJSON(t, "GET", srv.URL+"/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health expected 200 got %d", status)
	}
}

// Ready endpoint = dependency readiness (DB reachable).
func TestReady_ReturnsOK(t *testing.T) {
	srv := newTestServer(t)
	status, _ := doJSON(t, "GET", srv.URL+"/ready", "", nil)
	if status != http.StatusOK {
		t.Fatalf("ready expected 200 got %d", status)
	}
}

////////////////////////////////////////////////////////////////////////////////
// EVENTS CONTRACT TESTS
////////////////////////////////////////////////////////////////////////////////

// Request without API key must be rejected as a validation failure.
func TestEvents_UnprocessableWithoutAPIKey(t *testing.T) {
	srv := newTestServer(t)

	status, _ := ingestEvent(t, srv.URL, "", map[string]any{
		"event_type": "error",
		"name":       "TypeError",
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", status)
	}
}

// An unknown key is not-found, and nothing is persisted.
func TestEvents_NotFoundWithUnknownKey(t *testing.T) {
	srv := newTestServer(t)
	project := createProject(t, srv.URL, "Demo")

	status, _ := ingestEvent(t, srv.URL, "invalid", map[string]any{
		"event_type": "error",
		"name":       "TypeError",
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", status)
	}

	status, body := doJSON(t, "GET", fmt.Sprintf("%s/api/events/project/%d", srv.URL, project.ID), "", nil)
	if status != http.StatusOK {
		t.Fatalf("list expected 200 got %d", status)
	}
	var page struct {
		Total int64 `json:"total"`
	}
	decode(t, body, &page)
	if page.Total != 0 {
		t.Fatalf("rejected ingestion persisted %d events", page.Total)
	}
}

// Missing required fields should return a validation error.
func TestEvents_UnprocessableOnInvalidPayload(t *testing.T) {
	srv := newTestServer(t)
	project := createProject(t, srv.URL, "Demo")

	status, _ := ingestEvent(t, srv.URL, project.APIKey, map[string]any{"event_type": "error"})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("missing name expected 422 got %d", status)
	}

	status, _ = ingestEvent(t, srv.URL, project.APIKey, map[string]any{"event_type": "warning", "name": "x"})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("unknown event_type expected 422 got %d", status)
	}
}

// Ingested events become visible in the listing with server-assigned ids.
func TestEvents_IngestThenList(t *testing.T) {
	srv := newTestServer(t)
	project := createProject(t, srv.URL, "Demo")
	now := time.Now().UTC().Truncate(time.Second)

	status, body := ingestEvent(t, srv.URL, project.APIKey, map[string]any{
		"event_type":  "error",
		"name":        "TypeError",
		"message":     "Cannot read property of undefined",
		"page_url":    "https://app.example.com/dashboard",
		"user_id":     "user-123",
		"payload":     map[string]any{"stack": "at main.js:1"},
		"occurred_at": now.Format(time.RFC3339),
	})
	if status != http.StatusCreated {
		t.Fatalf("ingest expected 201 got %d (%s)", status, body)
	}
	var stored struct {
		ID        int64  `json:"id"`
		ProjectID int64  `json:"project_id"`
		EventType string `json:"event_type"`
	}
	decode(t, body, &stored)
	if stored.ID == 0 || stored.ProjectID != project.ID || stored.EventType != "error" {
		t.Fatalf("unexpected stored event: %+v", stored)
	}

	// Filtered listing: the user_id + event_type conjunction matches.
	u, _ := url.Parse(fmt.Sprintf("%s/api/events/project/%d", srv.URL, project.ID))
	q := u.Query()
	q.Set("event_type", "error")
	q.Set("user_id", "user-123")
	u.RawQuery = q.Encode()

	status, body = doJSON(t, "GET", u.String(), "", nil)
	if status != http.StatusOK {
		t.Fatalf("list expected 200 got %d", status)
	}
	var page struct {
		Total int64 `json:"total"`
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
	}
	decode(t, body, &page)
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != stored.ID {
		t.Fatalf("unexpected listing: %s", body)
	}
}

// Out-of-range pagination is clamped, not rejected.
func TestEvents_PaginationClamped(t *testing.T) {
	srv := newTestServer(t)
	project := createProject(t, srv.URL, "Demo")

	status, body := doJSON(t, "GET",
		fmt.Sprintf("%s/api/events/project/%d?page=0&page_size=5000", srv.URL, project.ID), "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}
	var page struct {
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	decode(t, body, &page)
	if page.Page != 1 || page.PageSize != 200 {
		t.Fatalf("expected clamped page=1 page_size=200, got %+v", page)
	}
}

func TestEvents_UnknownProjectListIs404(t *testing.T) {
	srv := newTestServer(t)
	status, _ := doJSON(t, "GET", srv.URL+"/api/events/project/999", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", status)
	}
}

////////////////////////////////////////////////////////////////////////////////
// CORE SYSTEM BEHAVIOR TESTS
////////////////////////////////////////////////////////////////////////////////

// The canonical scenario: 2 errors + 1 performance event in one hour.
func TestStats_SummaryAndTimeseriesScenario(t *testing.T) {
	srv := newTestServer(t)
	project := createProject(t, srv.URL, "Demo")
	base := time.Date(2024, 5, 6, 13, 10, 0, 0, time.UTC)

	for _, e := range []map[string]any{
		{"event_type": "error", "name": "TypeError", "user_id": "user-a", "occurred_at": base.Format(time.RFC3339)},
		{"event_type": "error", "name": "ReferenceError", "user_id": "user-b", "occurred_at": base.Add(5 * time.Minute).Format(time.RFC3339)},
		{"event_type": "performance", "name": "LCP", "user_id": "user-b", "payload": map[string]any{"duration": 2500}, "occurred_at": base.Add(20 * time.Minute).Format(time.RFC3339)},
	} {
		status, body := ingestEvent(t, srv.URL, project.APIKey, e)
		if status != http.StatusCreated {
			t.Fatalf("ingest expected 201 got %d (%s)", status, body)
		}
	}

	status, body := doJSON(t, "GET",
		fmt.Sprintf("%s/api/stats/project/%d/summary", srv.URL, project.ID), "", nil)
	if status != http.StatusOK {
		t.Fatalf("summary expected 200 got %d", status)
	}
	var summary struct {
		TotalEvents  int64            `json:"total_events"`
		UniqueUsers  int64            `json:"unique_users"`
		LatestEvent  *time.Time       `json:"latest_event"`
		CountsByType map[string]int64 `json:"counts_by_type"`
	}
	decode(t, body, &summary)
	if summary.TotalEvents != 3 || summary.UniqueUsers != 2 {
		t.Fatalf("unexpected summary: %s", body)
	}
	if summary.CountsByType["error"] != 2 || summary.CountsByType["performance"] != 1 {
		t.Fatalf("unexpected counts_by_type: %v", summary.CountsByType)
	}
	if _, present := summary.CountsByType["interaction"]; present {
		t.Fatalf("zero-count types must be omitted from summary: %v", summary.CountsByType)
	}
	if summary.LatestEvent == nil || !summary.LatestEvent.Equal(base.Add(20*time.Minute)) {
		t.Fatalf("unexpected latest_event: %v", summary.LatestEvent)
	}

	status, body = doJSON(t, "GET",
		fmt.Sprintf("%s/api/stats/project/%d/timeseries?granularity=hour", srv.URL, project.ID), "", nil)
	if status != http.StatusOK {
		t.Fatalf("timeseries expected 200 got %d", status)
	}
	var buckets []struct {
		Bucket string           `json:"bucket"`
		Counts map[string]int64 `json:"counts"`
		Total  int64            `json:"total"`
	}
	decode(t, body, &buckets)
	if len(buckets) != 1 {
		t.Fatalf("expected exactly 1 bucket got %d (%s)", len(buckets), body)
	}
	b := buckets[0]
	if b.Bucket != "2024-05-06 13:00:00" || b.Total != 3 {
		t.Fatalf("unexpected bucket: %+v", b)
	}
	want := map[string]int64{"error": 2, "performance": 1, "interaction": 0, "custom": 0}
	for k, v := range want {
		if b.Counts[k] != v {
			t.Fatalf("counts[%s] = %d, want %d", k, b.Counts[k], v)
		}
	}
	if len(b.Counts) != len(want) {
		t.Fatalf("timeseries counts must carry every event type: %v", b.Counts)
	}
}

func TestStats_InvalidGranularityIs400(t *testing.T) {
	srv := newTestServer(t)
	project := createProject(t, srv.URL, "Demo")

	status, _ := doJSON(t, "GET",
		fmt.Sprintf("%s/api/stats/project/%d/timeseries?granularity=week", srv.URL, project.ID), "", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", status)
	}
}

// Rotating the API key must invalidate the old key immediately.
func TestProjects_RotateKeyInvalidatesOldKey(t *testing.T) {
	srv := newTestServer(t)
	project := createProject(t, srv.URL, "Demo")
	oldKey := project.APIKey

	status, body := doJSON(t, "POST",
		fmt.Sprintf("%s/api/projects/%d/rotate-key", srv.URL, project.ID), "", nil)
	if status != http.StatusOK {
		t.Fatalf("rotate expected 200 got %d", status)
	}
	var rotated projectJSON
	decode(t, body, &rotated)
	if rotated.APIKey == oldKey {
		t.Fatal("rotation did not change the API key")
	}

	payload := map[string]any{"event_type": "error", "name": "TypeError"}
	if status, _ := ingestEvent(t, srv.URL, oldKey, payload); status != http.StatusNotFound {
		t.Fatalf("old key expected 404 got %d", status)
	}
	if status, _ := ingestEvent(t, srv.URL, rotated.APIKey, payload); status != http.StatusCreated {
		t.Fatalf("new key expected 201 got %d", status)
	}
}

func TestProjects_UpdateAndDelete(t *testing.T) {
	srv := newTestServer(t)
	project := createProject(t, srv.URL, "Site")

	status, body := doJSON(t, "PATCH",
		fmt.Sprintf("%s/api/projects/%d", srv.URL, project.ID), "",
		map[string]any{"description": "Updated description"})
	if status != http.StatusOK {
		t.Fatalf("patch expected 200 got %d", status)
	}
	var updated projectJSON
	decode(t, body, &updated)
	if updated.Name != "Site" || updated.Description == nil || *updated.Description != "Updated description" {
		t.Fatalf("unexpected patched project: %s", body)
	}

	status, _ = doJSON(t, "DELETE", fmt.Sprintf("%s/api/projects/%d", srv.URL, project.ID), "", nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete expected 204 got %d", status)
	}

	status, body = doJSON(t, "GET", srv.URL+"/api/projects", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list expected 200 got %d", status)
	}
	var list []projectJSON
	decode(t, body, &list)
	if len(list) != 0 {
		t.Fatalf("expected empty project list, got %s", body)
	}
}
