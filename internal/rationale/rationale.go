// Package rationale produces the structured, template-driven
// explanation attached to each cluster for human reviewers. Purely
// deterministic: every fact it states must appear in EvidenceUsed.
package rationale

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/vigil/internal/cluster"
	"github.com/MikeSquared-Agency/vigil/internal/confidence"
	"github.com/MikeSquared-Agency/vigil/internal/risk"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// Rationale is the four-section explanation plus assumptions and the
// evidence the sections were built from.
type Rationale struct {
	ClusterID      string    `json:"cluster_id"`
	WhatSignal     string    `json:"what_signal"`
	WhatChanged    string    `json:"what_changed"`
	WhyItMatters   string    `json:"why_it_matters"`
	WhatWeDontKnow string    `json:"what_we_dont_know"`
	Assumptions    []string  `json:"assumptions"`
	EvidenceUsed   []string  `json:"evidence_used"`
	GeneratedAt    time.Time `json:"generated_at"`
}

var categoryMatters = map[signal.Category]string{
	signal.Service:        "Downtime directly impacts revenue, customer satisfaction, and regulatory standing",
	signal.Fraud:          "Fraud losses, regulatory fines, and reputational damage require immediate attention",
	signal.Misinformation: "Reputational crisis and potential bank run scenarios require proactive response",
	signal.Sentiment:      "Sustained negative sentiment affects brand perception and customer retention",
}

var categoryAssumptions = map[signal.Category][]string{
	signal.Service: {
		"Signals reflect genuine technical issues (not user error)",
		"Correlation between signals indicates related incidents",
	},
	signal.Fraud: {
		"Reported patterns represent actual fraud attempts",
		"Classification accuracy is sufficient for prioritization",
	},
	signal.Misinformation: {
		"Social signals reflect broader public perception",
		"Identified keywords correctly indicate panic-inducing content",
	},
	signal.Sentiment: {
		"Sample is representative of overall customer sentiment",
		"Sentiment classification captures true customer intent",
	},
}

// Generator builds rationales from cluster and score data.
type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func whatSignal(cl *cluster.Cluster, rs risk.Score) string {
	phraseText := ""
	if len(cl.TopPhrases) > 0 {
		n := len(cl.TopPhrases)
		if n > 3 {
			n = 3
		}
		phraseText = " with keywords: " + strings.Join(cl.TopPhrases[:n], ", ")
	}

	volume := cl.Volume()
	switch cl.Category {
	case signal.Service:
		return fmt.Sprintf("Service incident cluster (%d signals)%s. Risk level: %s.", volume, phraseText, rs.Level)
	case signal.Fraud:
		return fmt.Sprintf("Potential fraud pattern (%d reports)%s. Risk level: %s.", volume, phraseText, rs.Level)
	case signal.Misinformation:
		return fmt.Sprintf("Misinformation/rumor cluster (%d signals)%s. Risk level: %s.", volume, phraseText, rs.Level)
	case signal.Sentiment:
		return fmt.Sprintf("Customer sentiment cluster (%d signals)%s. Risk level: %s.", volume, phraseText, rs.Level)
	default:
		return fmt.Sprintf("%s signal cluster (%d signals). Risk level: %s.", cl.Category, volume, rs.Level)
	}
}

func whatChanged(cl *cluster.Cluster) string {
	var change string
	switch {
	case cl.SpikeRatio >= 5.0:
		change = fmt.Sprintf("Significant spike detected: %.1fx above baseline volume", cl.SpikeRatio)
	case cl.SpikeRatio >= 2.0:
		change = fmt.Sprintf("Elevated activity: %.1fx above normal baseline", cl.SpikeRatio)
	case cl.SpikeRatio >= 1.5:
		change = fmt.Sprintf("Moderate increase: %.1fx typical volume", cl.SpikeRatio)
	default:
		change = "Volume within normal range but pattern detected"
	}
	return change + fmt.Sprintf(" (observed over %.0f minute window)", cl.DurationMinutes())
}

func whyItMatters(cl *cluster.Cluster, rs risk.Score) string {
	matters, ok := categoryMatters[cl.Category]
	if !ok {
		matters = "Requires analyst review"
	}

	var urgency string
	switch {
	case rs.TotalScore >= 8.0:
		urgency = "CRITICAL: Immediate escalation recommended."
	case rs.TotalScore >= 6.0:
		urgency = "HIGH PRIORITY: Prompt review required."
	case rs.TotalScore >= 4.0:
		urgency = "MODERATE: Standard review timeline."
	default:
		urgency = "LOW: Monitor for changes."
	}
	return matters + ". " + urgency
}

func whatWeDontKnow(cl *cluster.Cluster, cs confidence.Score) string {
	var uncertainties []string

	if cs.Percentage < 60 {
		uncertainties = append(uncertainties, "Classification confidence is limited")
	}
	if cs.Components["consistency"].Score < 60 {
		uncertainties = append(uncertainties, "Signals show mixed patterns")
	}
	if cs.Components["cluster_size"].Score < 50 {
		uncertainties = append(uncertainties, "Limited sample size")
	}
	if cl.Volume() < 5 {
		uncertainties = append(uncertainties, "Small cluster; pattern may not be representative")
	}

	switch cl.Category {
	case signal.Misinformation:
		uncertainties = append(uncertainties, "Cannot confirm if misinformation is coordinated")
	case signal.Fraud:
		uncertainties = append(uncertainties, "Cannot confirm actual fraud occurrence (reports only)")
	case signal.Service:
		uncertainties = append(uncertainties, "Root cause not determined from signals alone")
	}

	if len(uncertainties) == 0 {
		return "No significant uncertainties identified"
	}
	return strings.Join(uncertainties, "; ")
}

func assumptions(cl *cluster.Cluster) []string {
	base, ok := categoryAssumptions[cl.Category]
	if !ok {
		base = []string{
			"Signals represent genuine patterns",
			"Classification is accurate for prioritization purposes",
		}
	}
	out := make([]string, 0, len(base)+1)
	out = append(out, base...)
	out = append(out, "Ingested data patterns approximate real-world scenarios")
	return out
}

func evidence(cl *cluster.Cluster, rs risk.Score, cs confidence.Score) []string {
	out := []string{fmt.Sprintf("Cluster volume: %d signals", cl.Volume())}

	if len(cl.TopPhrases) > 0 {
		n := len(cl.TopPhrases)
		if n > 3 {
			n = 3
		}
		out = append(out, "Key phrases: "+strings.Join(cl.TopPhrases[:n], ", "))
	}
	out = append(out, fmt.Sprintf("Spike ratio: %.1fx baseline", cl.SpikeRatio))
	out = append(out, fmt.Sprintf("Risk score: %.1f/10", rs.TotalScore))

	names := make([]string, 0, len(rs.Components))
	for name := range rs.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		comp := rs.Components[name]
		out = append(out, fmt.Sprintf("  - %s: %.2f/%.1f", comp.Name, comp.Score, comp.MaxScore))
	}

	out = append(out, fmt.Sprintf("Confidence: %.0f%% (%s)", cs.Percentage, cs.Level))
	return out
}

// Generate builds the complete rationale for a cluster.
func (g *Generator) Generate(cl *cluster.Cluster, rs risk.Score, cs confidence.Score) Rationale {
	return Rationale{
		ClusterID:      cl.ID,
		WhatSignal:     whatSignal(cl, rs),
		WhatChanged:    whatChanged(cl),
		WhyItMatters:   whyItMatters(cl, rs),
		WhatWeDontKnow: whatWeDontKnow(cl, cs),
		Assumptions:    assumptions(cl),
		EvidenceUsed:   evidence(cl, rs, cs),
		GeneratedAt:    time.Now().UTC(),
	}
}
