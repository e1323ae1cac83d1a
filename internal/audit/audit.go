// Package audit keeps the immutable decision trail: every cluster
// analysis and every human decision is recorded with full context for
// governance review. Corrections append new rows; nothing is edited
// in place.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ModelVersion is stamped onto every record.
const ModelVersion = "1.0"

// Human decision values.
const (
	DecisionPending    = "PENDING"
	DecisionApproved   = "APPROVED"
	DecisionDismissed  = "DISMISSED"
	DecisionMoreReview = "MORE_REVIEW"
)

// ValidDecision reports whether a decision value is one the trail
// accepts.
func ValidDecision(decision string) bool {
	switch decision {
	case DecisionApproved, DecisionDismissed, DecisionMoreReview:
		return true
	}
	return false
}

// Record is one complete audit entry for a cluster analysis.
type Record struct {
	RecordID  string    `json:"record_id"`
	ClusterID string    `json:"cluster_id"`
	Timestamp time.Time `json:"timestamp"`

	SignalCount    int      `json:"signal_count"`
	SignalCategory string   `json:"signal_category"`
	TopKeywords    []string `json:"top_keywords"`

	ClassProbabilities map[string]float64 `json:"classification_probabilities"`
	RiskScore          float64            `json:"risk_score"`
	RiskBreakdown      map[string]float64 `json:"risk_breakdown"`
	ConfidencePct      float64            `json:"confidence_percentage"`
	ConfidenceLevel    string             `json:"confidence_level"`

	RationaleSummary string   `json:"rationale_summary"`
	Assumptions      []string `json:"assumptions"`

	SuggestedQueue string `json:"suggested_queue"`
	Priority       string `json:"priority"`

	HumanDecision  string `json:"human_decision"`
	HumanUser      string `json:"human_user"`
	DecisionReason string `json:"decision_reason,omitempty"`

	ProcessingTimeMS int64  `json:"processing_time_ms"`
	ModelVersion     string `json:"model_version"`
}

// Stats summarizes the recent trail for dashboards.
type Stats struct {
	TotalRecords int            `json:"total_records"`
	Decisions    map[string]int `json:"decisions"`
	Categories   map[string]int `json:"categories"`
	LastUpdated  *time.Time     `json:"last_updated,omitempty"`
}

// Recorder is the audit collaborator consumed by the pipeline.
// Recording is fire-and-forget from the pipeline's perspective:
// failures surface as batch warnings, never as pipeline errors.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	UpdateDecision(ctx context.Context, clusterID, decision, user, reason string) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
}

// NewRecordID mints a unique audit record ID.
func NewRecordID() string {
	return "AUD-" + uuid.NewString()
}

// MemoryRecorder is an in-process Recorder used in tests and when no
// database is configured. Keeps the most recent records only.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
	cap     int
}

// NewMemoryRecorder creates a recorder retaining up to limit records
// (1000 if limit <= 0).
func NewMemoryRecorder(limit int) *MemoryRecorder {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryRecorder{cap: limit}
}

func (m *MemoryRecorder) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if len(m.records) > m.cap {
		m.records = m.records[len(m.records)-m.cap:]
	}
	return nil
}

func (m *MemoryRecorder) UpdateDecision(_ context.Context, clusterID, decision, user, reason string) error {
	if !ValidDecision(decision) {
		return fmt.Errorf("invalid decision %q", decision)
	}
	update := Record{
		RecordID:       NewRecordID(),
		ClusterID:      clusterID,
		Timestamp:      time.Now().UTC(),
		HumanDecision:  decision,
		HumanUser:      user,
		DecisionReason: reason,
		ModelVersion:   ModelVersion,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, update)
	if len(m.records) > m.cap {
		m.records = m.records[len(m.records)-m.cap:]
	}
	return nil
}

func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]Record, limit)
	copy(out, m.records[len(m.records)-limit:])
	return out, nil
}

func (m *MemoryRecorder) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		TotalRecords: len(m.records),
		Decisions:    make(map[string]int),
		Categories:   make(map[string]int),
	}
	for _, r := range m.records {
		if r.HumanDecision != "" {
			stats.Decisions[r.HumanDecision]++
		}
		if r.SignalCategory != "" {
			stats.Categories[r.SignalCategory]++
		}
	}
	if n := len(m.records); n > 0 {
		ts := m.records[n-1].Timestamp
		stats.LastUpdated = &ts
	}
	return stats, nil
}
