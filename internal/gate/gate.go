// Package gate decides which classified signals surface for
// clustering and which are archived as noise. Archived items keep a
// structured reason with the threshold and actual value; nothing is
// silently dropped.
package gate

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// Confidence thresholds. FRAUD and MISINFORMATION carry higher bars
// because false surfacing there is cheaper than under-reporting.
const (
	DefaultThreshold = 0.35

	// Signals below their class threshold still surface when at least
	// this many same-fingerprint items arrived in the batch.
	VolumeOverride = 3

	// Borderline margin above the class threshold within which an
	// isolated (volume 1) signal is archived.
	IsolationMargin = 0.10
)

// Archive reason codes.
const (
	ReasonNoiseClass    = "noise_class"
	ReasonLowConfidence = "low_confidence"
	ReasonIsolated      = "isolated_signal"
)

var sensitiveThresholds = map[signal.Category]float64{
	signal.Fraud:          0.40,
	signal.Misinformation: 0.45,
}

// Rule 3 cutoffs, derived in constant arithmetic: adding the margin
// to a float64 threshold at runtime rounds 0.40 + 0.10 above 0.50,
// which would archive a fraud signal sitting exactly on the margin.
var isolationCutoffs = map[signal.Category]float64{
	signal.Fraud:          0.40 + IsolationMargin,
	signal.Misinformation: 0.45 + IsolationMargin,
}

func isolationCutoff(cls signal.Category) float64 {
	if c, ok := isolationCutoffs[cls]; ok {
		return c
	}
	return DefaultThreshold + IsolationMargin
}

// Summary aggregates gating statistics for a batch.
type Summary struct {
	SignalRate     float64            `json:"signal_rate"`
	NoiseRate      float64            `json:"noise_rate"`
	ArchiveReasons map[string]int     `json:"archive_reasons"`
	ThresholdsUsed map[string]float64 `json:"thresholds_used"`
}

// Result is the outcome of gating a batch of classification results.
type Result struct {
	Signals        []signal.GatedSignal
	Noise          []signal.GatedSignal
	TotalProcessed int
	SignalCount    int
	NoiseCount     int
	Summary        Summary
}

// Gate applies the surfacing rules to classified signals.
type Gate struct{}

func New() *Gate {
	return &Gate{}
}

// Threshold returns the confidence threshold for a class.
func (g *Gate) Threshold(cls signal.Category) float64 {
	if t, ok := sensitiveThresholds[cls]; ok {
		return t
	}
	return DefaultThreshold
}

// decide applies the gating rules in order; the first match wins.
func (g *Gate) decide(res signal.ClassificationResult, volume int) *signal.ArchiveReason {
	// Rule 1: the NOISE class is always archived.
	if res.Predicted == signal.Noise {
		return &signal.ArchiveReason{
			Code:        ReasonNoiseClass,
			Description: "Classified as routine noise (password reset, balance inquiry, etc.)",
			Threshold:   0.0,
			Actual:      res.Confidence,
		}
	}

	// Rule 2: below-threshold confidence, unless volume overrides.
	threshold := g.Threshold(res.Predicted)
	if res.Confidence < threshold {
		if volume >= VolumeOverride {
			return nil
		}
		return &signal.ArchiveReason{
			Code:        ReasonLowConfidence,
			Description: fmt.Sprintf("Confidence below threshold for %s", res.Predicted),
			Threshold:   threshold,
			Actual:      res.Confidence,
		}
	}

	// Rule 3: isolated signal with borderline confidence.
	if cutoff := isolationCutoff(res.Predicted); res.Confidence < cutoff && volume == 1 {
		return &signal.ArchiveReason{
			Code:        ReasonIsolated,
			Description: "Single isolated signal with borderline confidence",
			Threshold:   cutoff,
			Actual:      res.Confidence,
		}
	}

	return nil
}

// Apply gates a batch of classification results. volumes maps event ID
// to the count of same-fingerprint items in the batch; a missing entry
// means volume 1.
func (g *Gate) Apply(results []signal.ClassificationResult, volumes map[string]int) Result {
	out := Result{
		TotalProcessed: len(results),
		Summary: Summary{
			ArchiveReasons: make(map[string]int),
			ThresholdsUsed: map[string]float64{
				"default":                     DefaultThreshold,
				string(signal.Fraud):          sensitiveThresholds[signal.Fraud],
				string(signal.Misinformation): sensitiveThresholds[signal.Misinformation],
			},
		},
	}

	for _, res := range results {
		volume := volumes[res.EventID]
		if volume < 1 {
			volume = 1
		}

		reason := g.decide(res, volume)
		gated := signal.GatedSignal{
			ClassificationResult: res,
			Status:               signal.Surfaced,
			ArchiveReason:        reason,
		}
		if reason != nil {
			gated.Status = signal.Archived
			out.Noise = append(out.Noise, gated)
			out.Summary.ArchiveReasons[reason.Code]++
		} else {
			out.Signals = append(out.Signals, gated)
		}
	}

	out.SignalCount = len(out.Signals)
	out.NoiseCount = len(out.Noise)
	total := float64(max(out.TotalProcessed, 1))
	out.Summary.SignalRate = float64(out.SignalCount) / total
	out.Summary.NoiseRate = float64(out.NoiseCount) / total
	return out
}

// ArchiveSummary renders a human-readable account of archived items.
func (g *Gate) ArchiveSummary(result Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Archived (Noise): %d items\n\n", result.NoiseCount)

	if result.NoiseCount == 0 {
		b.WriteString("No items archived.")
		return b.String()
	}

	descriptions := make(map[string]string)
	order := make([]string, 0, len(result.Summary.ArchiveReasons))
	for _, item := range result.Noise {
		if item.ArchiveReason == nil {
			continue
		}
		if _, seen := descriptions[item.ArchiveReason.Code]; !seen {
			descriptions[item.ArchiveReason.Code] = item.ArchiveReason.Description
			order = append(order, item.ArchiveReason.Code)
		}
	}
	for _, code := range order {
		fmt.Fprintf(&b, "- %s: %d items\n", descriptions[code], result.Summary.ArchiveReasons[code])
	}
	return strings.TrimRight(b.String(), "\n")
}
