// Package risk computes a 0-10 risk score per cluster from four
// independent sub-components, each capped at 2.5. Every component
// carries its own evidence string so the total is auditable.
package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/vigil/internal/cluster"
	"github.com/MikeSquared-Agency/vigil/internal/lexicon"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// Level labels for the total score.
const (
	LevelCritical = "CRITICAL"
	LevelHigh     = "HIGH"
	LevelMedium   = "MEDIUM"
	LevelLow      = "LOW"
)

const componentMax = 2.5

var categorySeverity = map[signal.Category]float64{
	signal.Fraud:          2.5,
	signal.Misinformation: 2.3,
	signal.Service:        2.0,
	signal.Sentiment:      1.0,
	signal.Noise:          0.2,
}

// Component is one sub-score of the total.
type Component struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"max_score"`
	Description string  `json:"description"`
	Evidence    string  `json:"evidence"`
}

// Score is the complete risk assessment for a cluster. Derived data,
// never mutated after creation.
type Score struct {
	TotalScore         float64              `json:"total_score"`
	Components         map[string]Component `json:"components"`
	Level              string               `json:"risk_level"`
	IsConservative     bool                 `json:"is_conservative"`
	ConservativeReason string               `json:"conservative_reason,omitempty"`
	ConfidenceFactor   float64              `json:"confidence_factor"`
}

// Breakdown returns the plain name -> score map.
func (s Score) Breakdown() map[string]float64 {
	out := make(map[string]float64, len(s.Components))
	for name, comp := range s.Components {
		out[name] = comp.Score
	}
	return out
}

// Scorer computes risk scores against the trust-impact lexicon.
type Scorer struct {
	trust map[string]float64
}

func New(lex *lexicon.Lexicon) *Scorer {
	return &Scorer{trust: lex.TrustImpact}
}

func (s *Scorer) severity(cl *cluster.Cluster) Component {
	base, ok := categorySeverity[cl.Category]
	if !ok {
		base = 1.0
	}
	multiplier := math.Min(1.0, 0.5+float64(cl.Volume())/10)
	score := math.Min(componentMax, base*multiplier)

	return Component{
		Name:        "Severity",
		Score:       round2(score),
		MaxScore:    componentMax,
		Description: fmt.Sprintf("Based on %s category classification", cl.Category),
		Evidence:    fmt.Sprintf("Category weight: %g/2.5, Volume adjustment: %.2f", base, multiplier),
	}
}

func (s *Scorer) velocity(cl *cluster.Cluster) Component {
	minutes := cl.DurationMinutes()
	rate := float64(cl.Volume()) / minutes

	var score float64
	var label string
	switch {
	case rate >= 1.0:
		score, label = 2.5, "Critical spike"
	case rate >= 0.5:
		score, label = 2.0, "High velocity"
	case rate >= 0.2:
		score, label = 1.5, "Elevated"
	case rate >= 0.1:
		score, label = 1.0, "Moderate"
	default:
		score, label = 0.5, "Low"
	}

	return Component{
		Name:        "Velocity",
		Score:       score,
		MaxScore:    componentMax,
		Description: fmt.Sprintf("%s: %.2f signals/minute", label, rate),
		Evidence:    fmt.Sprintf("%d signals in %.0f minute window", cl.Volume(), minutes),
	}
}

func (s *Scorer) volume(cl *cluster.Cluster) Component {
	n := cl.Volume()

	var score float64
	var label string
	switch {
	case n >= 20:
		score, label = 2.5, "Very High"
	case n >= 10:
		score, label = 2.0, "High"
	case n >= 5:
		score, label = 1.5, "Moderate"
	case n >= 3:
		score, label = 1.0, "Low"
	default:
		score, label = 0.5, "Minimal"
	}

	return Component{
		Name:        "Volume",
		Score:       score,
		MaxScore:    componentMax,
		Description: fmt.Sprintf("%s volume: %d signals", label, n),
		Evidence:    fmt.Sprintf("Cluster contains %d classified signals", n),
	}
}

// trustImpact scans the cluster's combined text once against the
// trust-sensitive keyword dictionary. Each keyword counts once by
// presence; the summed weight is halved and capped at 2.5.
func (s *Scorer) trustImpact(cl *cluster.Cluster) Component {
	var combined strings.Builder
	for _, m := range cl.Members {
		combined.WriteString(" ")
		combined.WriteString(strings.ToLower(m.Text()))
	}
	text := combined.String()

	var total float64
	var found []string
	for keyword, weight := range s.trust {
		if strings.Contains(text, keyword) {
			total += weight
			found = append(found, keyword)
		}
	}
	sort.Strings(found)

	score := math.Min(componentMax, total/2)

	var label string
	switch {
	case score >= 2.0:
		label = "Severe"
	case score >= 1.5:
		label = "High"
	case score >= 1.0:
		label = "Moderate"
	default:
		label = "Low"
	}

	evidence := "Keywords: None detected"
	if len(found) > 0 {
		if len(found) > 5 {
			found = found[:5]
		}
		evidence = "Keywords: " + strings.Join(found, ", ")
	}

	return Component{
		Name:        "Trust Impact",
		Score:       round2(score),
		MaxScore:    componentMax,
		Description: fmt.Sprintf("%s trust impact detected", label),
		Evidence:    evidence,
	}
}

func riskLevel(total float64) string {
	switch {
	case total >= 8.0:
		return LevelCritical
	case total >= 6.0:
		return LevelHigh
	case total >= 4.0:
		return LevelMedium
	default:
		return LevelLow
	}
}

// conservative reduces high totals built on thin evidence and flags
// the adjustment so routing can surface it.
func (s *Scorer) conservative(total float64, cl *cluster.Cluster) (float64, bool, string) {
	adjusted := false
	var reason string

	volume := cl.Volume()
	if volume < 3 && total >= 6.0 {
		total = math.Max(total-0.2*(6.0-float64(volume)), 4.0)
		adjusted = true
		reason = fmt.Sprintf("Score reduced due to limited evidence (%d signals)", volume)
	}

	sources := make(map[string]struct{})
	for _, m := range cl.Members {
		sources[m.SourceType()] = struct{}{}
	}
	if len(sources) <= 1 && total >= 5.0 {
		total *= 0.9
		adjusted = true
		reason += "; Single source type"
	}

	return total, adjusted, strings.TrimPrefix(reason, "; ")
}

// Calculate computes the complete risk score for a cluster.
func (s *Scorer) Calculate(cl *cluster.Cluster) Score {
	components := map[string]Component{
		"severity":     s.severity(cl),
		"velocity":     s.velocity(cl),
		"volume":       s.volume(cl),
		"trust_impact": s.trustImpact(cl),
	}

	var total float64
	for _, comp := range components {
		total += comp.Score
	}

	total, isConservative, reason := s.conservative(total, cl)

	// Confidence in the score itself: full at an average of 1.5 per
	// component.
	confidence := math.Min(1.0, (total/4)/1.5)

	return Score{
		TotalScore:         round1(total),
		Components:         components,
		Level:              riskLevel(total),
		IsConservative:     isConservative,
		ConservativeReason: reason,
		ConfidenceFactor:   round2(confidence),
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
