package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/vigil/internal/audit"
	"github.com/MikeSquared-Agency/vigil/internal/cluster"
	"github.com/MikeSquared-Agency/vigil/internal/lexicon"
	"github.com/MikeSquared-Agency/vigil/internal/pipeline"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

const testToken = "test-token"

func newTestServer(t *testing.T) (*Server, *audit.MemoryRecorder) {
	t.Helper()
	recorder := audit.NewMemoryRecorder(0)
	pipe, err := pipeline.New(lexicon.Default(), 0, recorder, nil)
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	return NewServer(8760, testToken, pipe, recorder), recorder
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/vigil/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["agent"] != "vigil" {
		t.Errorf("agent = %q", body["agent"])
	}
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		token string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{"wrong-token", http.StatusUnauthorized},
		{testToken, http.StatusOK},
	}
	for _, tt := range tests {
		rec := doJSON(t, s, http.MethodGet, "/api/v1/audit/stats", tt.token, nil)
		if rec.Code != tt.want {
			t.Errorf("token %q: status %d, want %d", tt.token, rec.Code, tt.want)
		}
	}
}

func TestProcessBatch(t *testing.T) {
	s, recorder := newTestServer(t)

	events := make([]signal.Event, 10)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := range events {
		events[i] = signal.Event{
			ID:        "e" + string(rune('a'+i)),
			Text:      "atm outage reported, system down with error",
			Source:    "Tweet",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/batches", testToken, BatchRequest{Events: events})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		TotalEvents  int `json:"total_events"`
		ClusterCount int `json:"cluster_count"`
		Analyses     []struct {
			Cluster struct {
				ID string `json:"cluster_id"`
			} `json:"cluster"`
			Escalation struct {
				RequiresHumanApproval bool `json:"requires_human_approval"`
			} `json:"escalation"`
		} `json:"cluster_analyses"`
		ReviewTitles []string `json:"review_titles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.TotalEvents != 10 || body.ClusterCount != 1 {
		t.Errorf("events=%d clusters=%d", body.TotalEvents, body.ClusterCount)
	}
	if len(body.Analyses) != 1 || !body.Analyses[0].Escalation.RequiresHumanApproval {
		t.Errorf("analyses = %+v", body.Analyses)
	}
	if len(body.ReviewTitles) != 1 {
		t.Errorf("review titles = %v", body.ReviewTitles)
	}

	records, _ := recorder.Recent(context.Background(), 0)
	if len(records) != 1 {
		t.Errorf("audit records = %d", len(records))
	}
}

func TestPresentAnalysesLeavesClustersUntouched(t *testing.T) {
	original := &cluster.Cluster{
		ID:              "SNT-01",
		ExampleSnippets: []string{"customers are in panic over the outage"},
		EvidenceSummary: "panic spreading on social media",
	}

	presented := presentAnalyses([]pipeline.ClusterAnalysis{{Cluster: original}})

	got := presented[0].Cluster
	if !strings.Contains(got.ExampleSnippets[0], "[heightened customer anxiety]") {
		t.Errorf("snippet not rewritten: %q", got.ExampleSnippets[0])
	}
	if !strings.Contains(got.EvidenceSummary, "[heightened customer anxiety]") {
		t.Errorf("summary not rewritten: %q", got.EvidenceSummary)
	}
	if original.ExampleSnippets[0] != "customers are in panic over the outage" {
		t.Errorf("retained snippet mutated: %q", original.ExampleSnippets[0])
	}
	if original.EvidenceSummary != "panic spreading on social media" {
		t.Errorf("retained summary mutated: %q", original.EvidenceSummary)
	}
}

func TestProcessBatchRejectsBadJSON(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRecordDecision(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/clusters/SVC-01/decision", testToken,
		DecisionRequest{Decision: "APPROVED", User: "analyst1", Reason: "confirmed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/clusters/SVC-01/decision", testToken,
		DecisionRequest{Decision: "MAYBE", User: "analyst1"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid decision status = %d, want 422", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/clusters/SVC-01/decision", testToken,
		DecisionRequest{Decision: "APPROVED"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user status = %d, want 400", rec.Code)
	}
}

func TestAuditEndpoints(t *testing.T) {
	s, recorder := newTestServer(t)

	recorder.Record(context.Background(), audit.Record{
		RecordID:       audit.NewRecordID(),
		ClusterID:      "SVC-01",
		Timestamp:      time.Now().UTC(),
		SignalCategory: "SERVICE",
		HumanDecision:  audit.DecisionPending,
	})

	rec := doJSON(t, s, http.MethodGet, "/api/v1/audit/recent?limit=5", testToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recent status = %d", rec.Code)
	}
	var recent struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &recent); err != nil {
		t.Fatal(err)
	}
	if recent.Count != 1 {
		t.Errorf("count = %d", recent.Count)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/audit/recent?limit=-2", testToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/audit/stats", testToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
}
