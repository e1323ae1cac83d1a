package confidence

import (
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/vigil/internal/cluster"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func member(cat signal.Category, probs map[signal.Category]float64) signal.GatedSignal {
	return signal.GatedSignal{
		ClassificationResult: signal.ClassificationResult{
			Predicted:     cat,
			Confidence:    probs[cat],
			Probabilities: probs,
			Timestamp:     base,
		},
		Status: signal.Surfaced,
	}
}

func testCluster(members ...signal.GatedSignal) *cluster.Cluster {
	return &cluster.Cluster{
		ID:          "TST-01",
		Category:    members[0].Category(),
		Members:     members,
		WindowStart: base,
		WindowEnd:   base,
	}
}

func strongMember() signal.GatedSignal {
	return member(signal.Service, map[signal.Category]float64{
		signal.Service:        0.80,
		signal.Fraud:          0.05,
		signal.Misinformation: 0.05,
		signal.Sentiment:      0.05,
		signal.Noise:          0.05,
	})
}

func TestHighConfidenceCluster(t *testing.T) {
	s := New()

	members := make([]signal.GatedSignal, 10)
	for i := range members {
		members[i] = strongMember()
	}
	score := s.Calculate(testCluster(members...))

	if score.Percentage != 100 {
		t.Errorf("percentage = %g, want 100", score.Percentage)
	}
	if score.Level != High {
		t.Errorf("level = %s, want High", score.Level)
	}
	if score.Reason != "Strong evidence across all factors" {
		t.Errorf("reason = %q", score.Reason)
	}
	if score.UncertaintyWording != "Strong evidence supports this classification" {
		t.Errorf("wording = %q", score.UncertaintyWording)
	}
}

func TestIsolatedAmbiguousCluster(t *testing.T) {
	s := New()

	score := s.Calculate(testCluster(member(signal.Service, map[signal.Category]float64{
		signal.Service: 0.45,
		signal.Noise:   0.35,
		signal.Fraud:   0.10,
	})))

	// margin 0.10 -> 20, size 1 -> 20, consistency -> 100
	if score.Percentage != 44 {
		t.Errorf("percentage = %g, want 44", score.Percentage)
	}
	if score.Level != Low {
		t.Errorf("level = %s, want Low", score.Level)
	}
	if score.Reason != "ambiguous classification + limited volume" {
		t.Errorf("reason = %q", score.Reason)
	}
	if score.UncertaintyWording != "Limited evidence; treat as preliminary" {
		t.Errorf("wording = %q", score.UncertaintyWording)
	}
}

func TestMixedSignalsReason(t *testing.T) {
	s := New()

	members := []signal.GatedSignal{
		strongMember(), strongMember(), strongMember(),
		member(signal.Sentiment, map[signal.Category]float64{
			signal.Sentiment: 0.80,
			signal.Service:   0.20,
		}),
		member(signal.Fraud, map[signal.Category]float64{
			signal.Fraud:   0.80,
			signal.Service: 0.20,
		}),
	}
	score := s.Calculate(testCluster(members...))

	// 3 of 5 share the majority class.
	if got := score.Components["consistency"].Score; got != 60 {
		t.Errorf("consistency = %g, want 60", got)
	}
	if score.Components["consistency"].Description != "Mixed signal types" {
		t.Errorf("description = %q", score.Components["consistency"].Description)
	}
}

func TestClusterSizeTiers(t *testing.T) {
	s := New()

	tests := []struct {
		size int
		want float64
	}{
		{1, 20}, {2, 40}, {3, 60}, {5, 80}, {10, 100}, {25, 100},
	}
	for _, tt := range tests {
		members := make([]signal.GatedSignal, tt.size)
		for i := range members {
			members[i] = strongMember()
		}
		score := s.Calculate(testCluster(members...))
		if got := score.Components["cluster_size"].Score; got != tt.want {
			t.Errorf("size %d: score %g, want %g", tt.size, got, tt.want)
		}
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		pct  float64
		want Level
	}{
		{100, High}, {80, High},
		{79.9, MediumHigh}, {65, MediumHigh},
		{64.9, Medium}, {45, Medium},
		{44.9, Low}, {0, Low},
	}
	for _, tt := range tests {
		if got := levelFor(tt.pct); got != tt.want {
			t.Errorf("levelFor(%g) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestBoundsAcrossShapes(t *testing.T) {
	s := New()

	shapes := [][]signal.GatedSignal{
		{member(signal.Service, map[signal.Category]float64{signal.Service: 0.21, signal.Noise: 0.20})},
		{strongMember()},
		{strongMember(), strongMember()},
	}
	for _, members := range shapes {
		score := s.Calculate(testCluster(members...))
		if score.Percentage < 0 || score.Percentage > 100 {
			t.Errorf("percentage %g out of [0,100]", score.Percentage)
		}
	}
}

func TestMissingProbabilitiesFallsBack(t *testing.T) {
	s := New()

	gs := signal.GatedSignal{
		ClassificationResult: signal.ClassificationResult{
			Predicted:  signal.Service,
			Confidence: 0.10,
			Timestamp:  base,
		},
	}
	score := s.Calculate(testCluster(gs))

	// margin falls back to raw confidence 0.10 -> score 20
	if got := score.Components["nb_margin"].Score; got != 20 {
		t.Errorf("margin = %g, want 20", got)
	}
}

func TestDisplayText(t *testing.T) {
	s := New()
	score := s.Calculate(testCluster(strongMember()))
	text := score.DisplayText()
	if !strings.Contains(text, "Confidence") || !strings.Contains(text, string(score.Level)) {
		t.Errorf("display text %q missing fields", text)
	}
}
