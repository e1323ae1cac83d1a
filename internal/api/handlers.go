package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/vigil/internal/governance"
	"github.com/MikeSquared-Agency/vigil/internal/pipeline"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// BatchRequest is the payload for POST /api/v1/batches.
type BatchRequest struct {
	Events []signal.Event `json:"events"`
}

// DecisionRequest is the payload for POST /api/v1/clusters/{clusterID}/decision.
type DecisionRequest struct {
	Decision string `json:"decision"`
	User     string `json:"user"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) processBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	result, err := s.pipeline.Process(r.Context(), req.Events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("processing failed: %v", err))
		return
	}

	// Operator-facing snippets get the professional-tone rewrite.
	result.Analyses = presentAnalyses(result.Analyses)

	writeJSON(w, http.StatusOK, struct {
		*pipeline.BatchResult
		ReviewTitles []string `json:"review_titles"`
	}{result, titles(result)})
}

func (s *Server) recordDecision(w http.ResponseWriter, r *http.Request) {
	clusterID := chi.URLParam(r, "clusterID")

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	if !s.pipeline.RecordHumanDecision(r.Context(), clusterID, req.Decision, req.User, req.Reason) {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("decision %q not recorded", req.Decision))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"cluster_id": clusterID,
		"decision":   req.Decision,
		"status":     "recorded",
	})
}

func (s *Server) auditRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("audit lookup failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) auditStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.audit.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("audit stats failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// presentAnalyses applies the professional-tone rewrite to copies for
// the response body. The clusterer retains the originals for the
// related-clusters pass, so they must not be modified here.
func presentAnalyses(analyses []pipeline.ClusterAnalysis) []pipeline.ClusterAnalysis {
	out := make([]pipeline.ClusterAnalysis, len(analyses))
	for i, analysis := range analyses {
		cl := *analysis.Cluster
		cl.ExampleSnippets = make([]string, len(analysis.Cluster.ExampleSnippets))
		for j, snippet := range analysis.Cluster.ExampleSnippets {
			cl.ExampleSnippets[j] = governance.ProfessionalTone(snippet)
		}
		cl.EvidenceSummary = governance.ProfessionalTone(cl.EvidenceSummary)
		analysis.Cluster = &cl
		out[i] = analysis
	}
	return out
}

// titles returns review-card headings for a batch, one per cluster.
func titles(result *pipeline.BatchResult) []string {
	out := make([]string, len(result.Analyses))
	for i, a := range result.Analyses {
		out[i] = a.Title()
	}
	return out
}
