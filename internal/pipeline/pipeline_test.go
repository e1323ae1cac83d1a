package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/vigil/internal/audit"
	"github.com/MikeSquared-Agency/vigil/internal/escalation"
	"github.com/MikeSquared-Agency/vigil/internal/lexicon"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newPipeline(t *testing.T) (*Pipeline, *audit.MemoryRecorder) {
	t.Helper()
	recorder := audit.NewMemoryRecorder(0)
	p, err := New(lexicon.Default(), 0, recorder, nil)
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	return p, recorder
}

func serviceBurst(n int) []signal.Event {
	events := make([]signal.Event, n)
	for i := range events {
		events[i] = signal.Event{
			ID:        fmt.Sprintf("e%03d", i),
			Text:      "Payment error and timeout, system down",
			Source:    "Tweet",
			Timestamp: base.Add(time.Duration(i%10) * time.Minute),
		}
	}
	return events
}

func TestProcessServiceIncidentBurst(t *testing.T) {
	p, recorder := newPipeline(t)

	result, err := p.Process(context.Background(), serviceBurst(30))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.TotalEvents != 30 {
		t.Errorf("total events = %d", result.TotalEvents)
	}
	if !result.GovernanceValidated {
		t.Errorf("clean batch flagged: %v", result.ValidationIssues)
	}
	if result.SignalCount != 30 {
		t.Errorf("signal count = %d, want 30", result.SignalCount)
	}
	if result.ClusterCount != 1 {
		t.Fatalf("cluster count = %d, want 1", result.ClusterCount)
	}

	analysis := result.Analyses[0]
	if analysis.Cluster.Category != signal.Service {
		t.Errorf("category = %s", analysis.Cluster.Category)
	}
	if !analysis.Cluster.IsViral {
		t.Error("30 signals in 10 minutes should be viral")
	}
	if analysis.Risk.Level != "HIGH" && analysis.Risk.Level != "CRITICAL" {
		t.Errorf("risk level = %s, want HIGH or CRITICAL", analysis.Risk.Level)
	}
	// volume >= 15 forces governance routing
	if analysis.Escalation.SuggestedQueue != escalation.RiskGovernance {
		t.Errorf("queue = %s, want Risk & Governance", analysis.Escalation.SuggestedQueue)
	}
	if !analysis.Escalation.RequiresHumanApproval {
		t.Error("approval flag must be set")
	}

	records, _ := recorder.Recent(context.Background(), 0)
	if len(records) != 1 {
		t.Errorf("audit records = %d, want 1 per cluster", len(records))
	}
	if records[0].ClusterID != analysis.Cluster.ID {
		t.Errorf("audit cluster id = %s", records[0].ClusterID)
	}
}

func TestVolumeOverrideSurfacesNearDuplicates(t *testing.T) {
	p, _ := newPipeline(t)

	// No lexicon keywords: every event classifies at the uniform
	// floor, far below threshold. Five identical texts give each a
	// fingerprint volume of 5, which overrides the gate.
	events := make([]signal.Event, 5)
	for i := range events {
		events[i] = signal.Event{
			ID:        fmt.Sprintf("d%d", i),
			Text:      "hello there everyone again",
			Source:    "Tweet",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}

	result, err := p.Process(context.Background(), events)
	if err != nil {
		t.Fatal(err)
	}
	if result.SignalCount != 5 {
		t.Errorf("signal count = %d, want 5 (volume override)", result.SignalCount)
	}
	if result.NoiseCount != 0 {
		t.Errorf("noise count = %d, want 0", result.NoiseCount)
	}
}

func TestIsolatedLowConfidenceArchived(t *testing.T) {
	p, _ := newPipeline(t)

	result, err := p.Process(context.Background(), []signal.Event{{
		ID:        "solo",
		Text:      "completely unrelated chatter",
		Source:    "Tweet",
		Timestamp: base,
	}})
	if err != nil {
		t.Fatal(err)
	}
	if result.SignalCount != 0 || result.NoiseCount != 1 {
		t.Errorf("signal=%d noise=%d, want 0/1", result.SignalCount, result.NoiseCount)
	}
	if result.ClusterCount != 0 {
		t.Errorf("cluster count = %d, want 0", result.ClusterCount)
	}
}

func TestEmptyBatch(t *testing.T) {
	p, _ := newPipeline(t)

	result, err := p.Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty batch should not error: %v", err)
	}
	if result.TotalEvents != 0 || result.ClusterCount != 0 || len(result.Analyses) != 0 {
		t.Errorf("expected zero-valued result, got %+v", result)
	}
	if result.BatchID == "" {
		t.Error("batch id should still be assigned")
	}
}

func TestGovernanceViolationFlagsBatch(t *testing.T) {
	p, _ := newPipeline(t)

	events := append(serviceBurst(3), signal.Event{
		ID:        "bad",
		Text:      "card 4532015112830366 charged twice",
		Source:    "Tweet",
		Timestamp: base,
	})

	result, err := p.Process(context.Background(), events)
	if err != nil {
		t.Fatal(err)
	}
	if result.GovernanceValidated {
		t.Error("batch with live-data pattern should be flagged")
	}
	if len(result.ValidationIssues) == 0 {
		t.Error("expected validation issues")
	}
	// processing continues for the rest of the batch
	if result.TotalEvents != 4 {
		t.Errorf("total events = %d, want 4", result.TotalEvents)
	}
}

func TestDeterministicAcrossFreshInstances(t *testing.T) {
	events := serviceBurst(12)

	p1, _ := newPipeline(t)
	p2, _ := newPipeline(t)
	a, err := p1.Process(context.Background(), events)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p2.Process(context.Background(), events)
	if err != nil {
		t.Fatal(err)
	}

	if a.ClusterCount != b.ClusterCount || a.SignalCount != b.SignalCount {
		t.Fatalf("results differ: %d/%d vs %d/%d", a.ClusterCount, a.SignalCount, b.ClusterCount, b.SignalCount)
	}
	for i := range a.Analyses {
		if a.Analyses[i].Cluster.ID != b.Analyses[i].Cluster.ID {
			t.Errorf("cluster ids differ: %s vs %s", a.Analyses[i].Cluster.ID, b.Analyses[i].Cluster.ID)
		}
		if a.Analyses[i].Risk.TotalScore != b.Analyses[i].Risk.TotalScore {
			t.Errorf("risk scores differ: %g vs %g", a.Analyses[i].Risk.TotalScore, b.Analyses[i].Risk.TotalScore)
		}
	}
}

func TestRecordHumanDecision(t *testing.T) {
	p, recorder := newPipeline(t)
	ctx := context.Background()

	if p.RecordHumanDecision(ctx, "SVC-01", "MAYBE", "analyst1", "") {
		t.Error("invalid decision should be rejected")
	}
	if !p.RecordHumanDecision(ctx, "SVC-01", audit.DecisionApproved, "analyst1", "confirmed") {
		t.Error("valid decision should be recorded")
	}

	records, _ := recorder.Recent(ctx, 0)
	if len(records) != 1 || records[0].HumanDecision != audit.DecisionApproved {
		t.Errorf("records = %+v", records)
	}
}

func TestTitleUsesTopPhrase(t *testing.T) {
	p, _ := newPipeline(t)

	result, err := p.Process(context.Background(), serviceBurst(10))
	if err != nil {
		t.Fatal(err)
	}
	title := result.Analyses[0].Title()
	if title != "Service Incident: Down" && title != "Service Incident: Error" && title != "Service Incident: Timeout" {
		t.Errorf("title = %q", title)
	}
}

func TestFingerprintNormalization(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"ATM down  NOW", "atm down now", true},
		{"atm down", "atm up", false},
	}
	for _, tt := range tests {
		if (fingerprint(tt.a) == fingerprint(tt.b)) != tt.same {
			t.Errorf("fingerprint(%q) vs fingerprint(%q): same=%v, want %v",
				tt.a, tt.b, !tt.same, tt.same)
		}
	}
}
