package rationale

import (
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/vigil/internal/cluster"
	"github.com/MikeSquared-Agency/vigil/internal/confidence"
	"github.com/MikeSquared-Agency/vigil/internal/risk"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func member(cat signal.Category) signal.GatedSignal {
	return signal.GatedSignal{
		ClassificationResult: signal.ClassificationResult{
			Predicted: cat,
			Timestamp: base,
		},
	}
}

func testCluster(cat signal.Category, volume int, spike float64) *cluster.Cluster {
	members := make([]signal.GatedSignal, volume)
	for i := range members {
		members[i] = member(cat)
	}
	return &cluster.Cluster{
		ID:          "SVC-01",
		Category:    cat,
		Members:     members,
		TopPhrases:  []string{"outage", "down", "timeout", "error"},
		SpikeRatio:  spike,
		WindowStart: base,
		WindowEnd:   base.Add(30 * time.Minute),
	}
}

func testRisk(total float64) risk.Score {
	return risk.Score{
		TotalScore: total,
		Level:      "HIGH",
		Components: map[string]risk.Component{
			"severity": {Name: "Severity", Score: 2.0, MaxScore: 2.5},
			"velocity": {Name: "Velocity", Score: 2.0, MaxScore: 2.5},
		},
	}
}

func testConfidence(pct float64) confidence.Score {
	return confidence.Score{
		Percentage: pct,
		Level:      confidence.Medium,
		Components: map[string]confidence.Component{
			"consistency":  {Score: 80},
			"cluster_size": {Score: 60},
		},
	}
}

func TestGenerateSections(t *testing.T) {
	g := New()
	r := g.Generate(testCluster(signal.Service, 10, 6.0), testRisk(6.5), testConfidence(70))

	if r.ClusterID != "SVC-01" {
		t.Errorf("cluster id = %q", r.ClusterID)
	}
	if !strings.Contains(r.WhatSignal, "Service incident cluster (10 signals)") {
		t.Errorf("what_signal = %q", r.WhatSignal)
	}
	if !strings.Contains(r.WhatSignal, "outage, down, timeout") {
		t.Errorf("what_signal should list top three phrases: %q", r.WhatSignal)
	}
	if !strings.Contains(r.WhatChanged, "Significant spike detected: 6.0x") {
		t.Errorf("what_changed = %q", r.WhatChanged)
	}
	if !strings.Contains(r.WhatChanged, "30 minute window") {
		t.Errorf("what_changed missing duration: %q", r.WhatChanged)
	}
	if !strings.Contains(r.WhyItMatters, "HIGH PRIORITY") {
		t.Errorf("why_it_matters = %q", r.WhyItMatters)
	}
	if r.GeneratedAt.IsZero() {
		t.Error("generated_at not set")
	}
}

func TestSpikeWording(t *testing.T) {
	g := New()
	tests := []struct {
		spike float64
		want  string
	}{
		{6.0, "Significant spike"},
		{3.0, "Elevated activity"},
		{1.7, "Moderate increase"},
		{1.0, "Volume within normal range"},
	}
	for _, tt := range tests {
		r := g.Generate(testCluster(signal.Service, 5, tt.spike), testRisk(5), testConfidence(70))
		if !strings.Contains(r.WhatChanged, tt.want) {
			t.Errorf("spike %g: %q does not contain %q", tt.spike, r.WhatChanged, tt.want)
		}
	}
}

func TestUrgencyTiers(t *testing.T) {
	g := New()
	tests := []struct {
		total float64
		want  string
	}{
		{8.5, "CRITICAL"},
		{6.5, "HIGH PRIORITY"},
		{4.5, "MODERATE"},
		{2.0, "LOW"},
	}
	for _, tt := range tests {
		r := g.Generate(testCluster(signal.Service, 5, 2.0), testRisk(tt.total), testConfidence(70))
		if !strings.Contains(r.WhyItMatters, tt.want) {
			t.Errorf("total %g: %q does not contain %q", tt.total, r.WhyItMatters, tt.want)
		}
	}
}

func TestUncertaintiesForThinCluster(t *testing.T) {
	g := New()

	cs := confidence.Score{
		Percentage: 40,
		Level:      confidence.Low,
		Components: map[string]confidence.Component{
			"consistency":  {Score: 50},
			"cluster_size": {Score: 20},
		},
	}
	r := g.Generate(testCluster(signal.Fraud, 2, 1.0), testRisk(4), cs)

	for _, want := range []string{
		"Classification confidence is limited",
		"Signals show mixed patterns",
		"Limited sample size",
		"Small cluster",
		"Cannot confirm actual fraud occurrence",
	} {
		if !strings.Contains(r.WhatWeDontKnow, want) {
			t.Errorf("what_we_dont_know missing %q: %q", want, r.WhatWeDontKnow)
		}
	}
}

func TestCategoryAssumptions(t *testing.T) {
	g := New()

	for _, cat := range []signal.Category{
		signal.Service, signal.Fraud, signal.Misinformation, signal.Sentiment,
	} {
		r := g.Generate(testCluster(cat, 5, 2.0), testRisk(5), testConfidence(70))
		if len(r.Assumptions) < 3 {
			t.Errorf("%s: got %d assumptions, want at least 3", cat, len(r.Assumptions))
		}
	}
}

func TestEvidenceEchoesInputs(t *testing.T) {
	g := New()
	r := g.Generate(testCluster(signal.Service, 10, 6.0), testRisk(6.5), testConfidence(70))

	joined := strings.Join(r.EvidenceUsed, "\n")
	for _, want := range []string{
		"Cluster volume: 10 signals",
		"Key phrases: outage, down, timeout",
		"Spike ratio: 6.0x baseline",
		"Risk score: 6.5/10",
		"Severity: 2.00/2.5",
		"Confidence: 70% (Medium)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("evidence missing %q:\n%s", want, joined)
		}
	}
}
