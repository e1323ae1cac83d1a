// Package escalation maps clusters and their scores to a suggested
// team queue and priority. The router never assigns to individuals
// and never self-authorizes: every suggestion requires human approval.
package escalation

import (
	"fmt"

	"github.com/MikeSquared-Agency/vigil/internal/cluster"
	"github.com/MikeSquared-Agency/vigil/internal/confidence"
	"github.com/MikeSquared-Agency/vigil/internal/risk"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// Queue is a team review queue.
type Queue string

const (
	Operations     Queue = "Operations"
	FraudReview    Queue = "Fraud Review"
	Communications Queue = "Communications"
	RiskGovernance Queue = "Risk & Governance"
	General        Queue = "General Review"
)

// Priority labels, ordered URGENT > HIGH > STANDARD > LOW.
const (
	PriorityUrgent   = "URGENT"
	PriorityHigh     = "HIGH"
	PriorityStandard = "STANDARD"
	PriorityLow      = "LOW"
)

// Governance override thresholds: high risk, conservative-flagged, or
// very large clusters always get Risk & Governance visibility.
const (
	governanceScore  = 8.0
	governanceVolume = 15
)

var categoryQueue = map[signal.Category]Queue{
	signal.Service:        Operations,
	signal.Fraud:          FraudReview,
	signal.Misinformation: Communications,
	signal.Sentiment:      Communications,
	signal.Noise:          General,
}

var alternativeQueues = map[signal.Category][]Queue{
	signal.Service:        {RiskGovernance},
	signal.Fraud:          {RiskGovernance, Operations},
	signal.Misinformation: {RiskGovernance},
	signal.Sentiment:      {Operations},
	signal.Noise:          {},
}

var riskPriority = map[string]string{
	risk.LevelCritical: PriorityUrgent,
	risk.LevelHigh:     PriorityHigh,
	risk.LevelMedium:   PriorityStandard,
	risk.LevelLow:      PriorityLow,
}

var routingReasons = map[signal.Category]string{
	signal.Service:        "Technical service signals require Operations team review",
	signal.Fraud:          "Fraud indicators require specialized Fraud Review team assessment",
	signal.Misinformation: "Reputational signals require Communications team response planning",
	signal.Sentiment:      "Customer sentiment patterns for Communications awareness",
	signal.Noise:          "Routine signals for general review and archival",
}

// Suggestion is a queue-routing recommendation for one cluster.
// RequiresHumanApproval is always true.
type Suggestion struct {
	SuggestedQueue        Queue   `json:"suggested_queue"`
	Priority              string  `json:"priority"`
	Reason                string  `json:"reason"`
	RequiresHumanApproval bool    `json:"requires_human_approval"`
	ApprovalNotice        string  `json:"approval_notice"`
	AlternativeQueues     []Queue `json:"alternative_queues"`
}

// Router routes clusters to team queues.
type Router struct{}

func New() *Router {
	return &Router{}
}

func priorityFor(rs risk.Score, cs confidence.Score) string {
	base, ok := riskPriority[rs.Level]
	if !ok {
		base = PriorityStandard
	}

	// Low confidence downgrades one step so weak evidence never
	// drives an urgent page on its own.
	if cs.Percentage < 50 && base == PriorityUrgent {
		return PriorityHigh
	}
	if cs.Percentage < 40 && base == PriorityHigh {
		return PriorityStandard
	}
	return base
}

func needsGovernance(rs risk.Score, cl *cluster.Cluster) bool {
	if rs.TotalScore >= governanceScore {
		return true
	}
	if rs.IsConservative {
		return true
	}
	return cl.Volume() >= governanceVolume
}

// Suggest produces the routing suggestion for a cluster.
func (r *Router) Suggest(cl *cluster.Cluster, rs risk.Score, cs confidence.Score) Suggestion {
	queue, ok := categoryQueue[cl.Category]
	if !ok {
		queue = General
	}
	if needsGovernance(rs, cl) {
		queue = RiskGovernance
	}

	alternatives := make([]Queue, 0, 2)
	for _, alt := range alternativeQueues[cl.Category] {
		if alt != queue {
			alternatives = append(alternatives, alt)
		}
	}

	reason, ok := routingReasons[cl.Category]
	if !ok {
		reason = "Requires review"
	}
	if rs.TotalScore >= 7.0 {
		reason += fmt.Sprintf(" (Risk Score: %.1f/10)", rs.TotalScore)
	}

	return Suggestion{
		SuggestedQueue:        queue,
		Priority:              priorityFor(rs, cs),
		Reason:                reason,
		RequiresHumanApproval: true,
		ApprovalNotice:        fmt.Sprintf("Suggested queue: %s (human approval required)", queue),
		AlternativeQueues:     alternatives,
	}
}
