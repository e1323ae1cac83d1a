// Package confidence derives a 0-100 confidence percentage per
// cluster from three weighted factors, with explicit uncertainty
// wording so weak evidence never presents as certainty.
package confidence

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/vigil/internal/cluster"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// Level labels for the confidence percentage.
type Level string

const (
	High       Level = "High"
	MediumHigh Level = "Medium-High"
	Medium     Level = "Medium"
	Low        Level = "Low"
)

// Component weights. The probability margin dominates because it
// reflects the classifier's own separation between classes.
const (
	weightMargin      = 0.4
	weightClusterSize = 0.3
	weightConsistency = 0.3
)

var uncertaintyWording = map[Level]string{
	High:       "Strong evidence supports this classification",
	MediumHigh: "Good evidence with some uncertainty",
	Medium:     "Mixed signals; recommend additional review",
	Low:        "Limited evidence; treat as preliminary",
}

// Component is one weighted factor of the confidence score.
type Component struct {
	Score       float64 `json:"score"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Score is the complete confidence assessment for a cluster.
type Score struct {
	Percentage         float64              `json:"percentage"`
	Level              Level                `json:"level"`
	Reason             string               `json:"reason"`
	UncertaintyWording string               `json:"uncertainty_wording"`
	Components         map[string]Component `json:"components"`
}

// DisplayText renders the one-line analyst summary.
func (s Score) DisplayText() string {
	return fmt.Sprintf("Confidence %.0f%% (%s): %s", s.Percentage, s.Level, s.Reason)
}

// Scorer computes confidence scores. Stateless.
type Scorer struct{}

func New() *Scorer {
	return &Scorer{}
}

// margin averages the per-signal gap between the top-1 and top-2
// class probabilities, scaled so a 0.5 margin scores 100.
func (s *Scorer) margin(cl *cluster.Cluster) (float64, string) {
	var margins []float64
	for _, m := range cl.Members {
		probs := m.Probabilities()
		if len(probs) < 2 {
			margins = append(margins, m.Confidence)
			continue
		}
		values := make([]float64, 0, len(probs))
		for _, p := range probs {
			values = append(values, p)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(values)))
		margins = append(margins, values[0]-values[1])
	}

	if len(margins) == 0 {
		return 50.0, "No probability data available"
	}

	var sum float64
	for _, m := range margins {
		sum += m
	}
	avg := sum / float64(len(margins))
	score := math.Min(100, (avg/0.5)*100)

	var desc string
	switch {
	case avg >= 0.4:
		desc = "Strong probability margins"
	case avg >= 0.25:
		desc = "Moderate probability margins"
	case avg >= 0.1:
		desc = "Narrow probability margins"
	default:
		desc = "Very narrow margins (ambiguous)"
	}
	return score, desc
}

func (s *Scorer) clusterSize(cl *cluster.Cluster) (float64, string) {
	volume := cl.Volume()
	switch {
	case volume >= 10:
		return 100, fmt.Sprintf("Large cluster (%d signals)", volume)
	case volume >= 5:
		return 80, fmt.Sprintf("Medium cluster (%d signals)", volume)
	case volume >= 3:
		return 60, fmt.Sprintf("Small cluster (%d signals)", volume)
	case volume >= 2:
		return 40, fmt.Sprintf("Minimal cluster (%d signals)", volume)
	default:
		return 20, "Single signal (isolated)"
	}
}

// consistency is the fraction of members sharing the majority
// predicted class.
func (s *Scorer) consistency(cl *cluster.Cluster) (float64, string) {
	if len(cl.Members) == 0 {
		return 50.0, "No signals to analyze"
	}

	counts := make(map[signal.Category]int)
	for _, m := range cl.Members {
		counts[m.Category()]++
	}
	majority := 0
	for _, n := range counts {
		if n > majority {
			majority = n
		}
	}
	ratio := float64(majority) / float64(len(cl.Members))
	score := ratio * 100

	var desc string
	switch {
	case ratio >= 0.9:
		desc = "Highly consistent signals"
	case ratio >= 0.7:
		desc = "Mostly consistent signals"
	case ratio >= 0.5:
		desc = "Mixed signal types"
	default:
		desc = "Inconsistent signals"
	}
	return score, desc
}

func levelFor(pct float64) Level {
	switch {
	case pct >= 80:
		return High
	case pct >= 65:
		return MediumHigh
	case pct >= 45:
		return Medium
	default:
		return Low
	}
}

// reason names the weak components, joined with " + ".
func reason(components map[string]Component, level Level) string {
	var parts []string
	if components["nb_margin"].Score < 50 {
		parts = append(parts, "ambiguous classification")
	}
	if components["cluster_size"].Score < 50 {
		parts = append(parts, "limited volume")
	}
	if components["consistency"].Score < 60 {
		parts = append(parts, "mixed signals")
	}
	if len(parts) == 0 {
		if level == High {
			return "Strong evidence across all factors"
		}
		return "Balanced evidence"
	}
	return strings.Join(parts, " + ")
}

// Calculate computes the confidence score for a cluster.
func (s *Scorer) Calculate(cl *cluster.Cluster) Score {
	marginScore, marginDesc := s.margin(cl)
	sizeScore, sizeDesc := s.clusterSize(cl)
	consistencyScore, consistencyDesc := s.consistency(cl)

	components := map[string]Component{
		"nb_margin":    {Score: marginScore, Description: marginDesc, Weight: weightMargin},
		"cluster_size": {Score: sizeScore, Description: sizeDesc, Weight: weightClusterSize},
		"consistency":  {Score: consistencyScore, Description: consistencyDesc, Weight: weightConsistency},
	}

	weighted := marginScore*weightMargin + sizeScore*weightClusterSize + consistencyScore*weightConsistency
	pct := math.Round(weighted*10) / 10
	level := levelFor(pct)

	return Score{
		Percentage:         pct,
		Level:              level,
		Reason:             reason(components, level),
		UncertaintyWording: uncertaintyWording[level],
		Components:         components,
	}
}
