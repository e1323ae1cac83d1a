// Package pipeline sequences the full decision pipeline over a batch
// of events: classification, gating, clustering, per-cluster risk and
// confidence scoring, rationale generation, and queue routing.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/vigil/internal/audit"
	"github.com/MikeSquared-Agency/vigil/internal/classifier"
	"github.com/MikeSquared-Agency/vigil/internal/cluster"
	"github.com/MikeSquared-Agency/vigil/internal/confidence"
	"github.com/MikeSquared-Agency/vigil/internal/escalation"
	"github.com/MikeSquared-Agency/vigil/internal/gate"
	"github.com/MikeSquared-Agency/vigil/internal/governance"
	"github.com/MikeSquared-Agency/vigil/internal/lexicon"
	"github.com/MikeSquared-Agency/vigil/internal/rationale"
	"github.com/MikeSquared-Agency/vigil/internal/risk"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// fingerprintLen is the normalized-text prefix used to group
// near-duplicate events for the gate's volume override.
const fingerprintLen = 40

// ClusterAnalysis joins a cluster with everything derived from it.
// This is the unit handed to downstream consumers.
type ClusterAnalysis struct {
	Cluster    *cluster.Cluster      `json:"cluster"`
	Risk       risk.Score            `json:"risk_score"`
	Confidence confidence.Score      `json:"confidence"`
	Rationale  rationale.Rationale   `json:"rationale"`
	Escalation escalation.Suggestion `json:"escalation"`
}

// Title renders a short descriptive heading for review cards.
func (a ClusterAnalysis) Title() string {
	var base string
	switch a.Cluster.Category {
	case signal.Service:
		base = "Service Incident"
	case signal.Fraud:
		base = "Fraud Alert"
	case signal.Misinformation:
		base = "Misinformation Cluster"
	case signal.Sentiment:
		base = "Sentiment Pattern"
	default:
		base = "Signal Cluster"
	}
	if phrase := a.Cluster.TopPhrases; len(phrase) > 0 && phrase[0] != "" {
		return base + ": " + strings.ToUpper(phrase[0][:1]) + phrase[0][1:]
	}
	return base + " (" + a.Cluster.ID + ")"
}

// BatchResult is the complete output for one processed batch.
type BatchResult struct {
	BatchID   string    `json:"batch_id"`
	Timestamp time.Time `json:"timestamp"`

	GovernanceValidated bool     `json:"governance_validated"`
	ValidationIssues    []string `json:"validation_issues,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`

	TotalEvents       int                     `json:"total_events"`
	ClassDistribution map[signal.Category]int `json:"class_distribution"`
	AverageConfidence float64                 `json:"average_confidence"`

	SignalCount   int          `json:"signal_count"`
	NoiseCount    int          `json:"noise_count"`
	GatingSummary gate.Summary `json:"gating_summary"`

	ClusterCount         int                     `json:"cluster_count"`
	CategoryDistribution map[signal.Category]int `json:"category_distribution"`

	Analyses []ClusterAnalysis `json:"cluster_analyses"`

	ProcessingTime time.Duration `json:"-"`
	ProcessingMS   int64         `json:"processing_time_ms"`
}

// Pipeline owns explicitly constructed stage instances. The only
// cross-batch state is the clusterer's ID counters.
type Pipeline struct {
	classifier *classifier.Classifier
	gate       *gate.Gate
	clusterer  *cluster.Clusterer
	risk       *risk.Scorer
	confidence *confidence.Scorer
	rationale  *rationale.Generator
	router     *escalation.Router
	governance *governance.Validator
	audit      audit.Recorder
	logger     *slog.Logger
}

// New wires the pipeline from a lexicon and an audit recorder.
// window <= 0 selects the default clustering window.
func New(lex *lexicon.Lexicon, window time.Duration, recorder audit.Recorder, logger *slog.Logger) (*Pipeline, error) {
	cls, err := classifier.New(lex)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier: cls,
		gate:       gate.New(),
		clusterer:  cluster.New(lex, window),
		risk:       risk.New(lex),
		confidence: confidence.New(),
		rationale:  rationale.New(),
		router:     escalation.New(),
		governance: governance.New(),
		audit:      recorder,
		logger:     logger,
	}, nil
}

// fingerprint normalizes text and truncates it so near-duplicate
// events share a key.
func fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if len(normalized) > fingerprintLen {
		normalized = normalized[:fingerprintLen]
	}
	return normalized
}

// volumeMap counts events per content fingerprint and maps each event
// ID to its group size.
func volumeMap(events []signal.Event) map[string]int {
	groups := make(map[string]int, len(events))
	for _, ev := range events {
		groups[fingerprint(ev.Text)]++
	}
	volumes := make(map[string]int, len(events))
	for _, ev := range events {
		volumes[ev.ID] = groups[fingerprint(ev.Text)]
	}
	return volumes
}

// Process runs the full pipeline over a batch. An empty batch yields
// a zero-valued result; a malformed event degrades to a default
// classification rather than aborting the batch.
func (p *Pipeline) Process(ctx context.Context, events []signal.Event) (*BatchResult, error) {
	start := time.Now()

	result := &BatchResult{
		BatchID:              uuid.NewString(),
		Timestamp:            start.UTC(),
		GovernanceValidated:  true,
		TotalEvents:          len(events),
		ClassDistribution:    make(map[signal.Category]int),
		CategoryDistribution: make(map[signal.Category]int),
	}
	if len(events) == 0 {
		result.ProcessingTime = time.Since(start)
		result.ProcessingMS = result.ProcessingTime.Milliseconds()
		return result, nil
	}

	// Governance pre-check. Violations flag the batch; they never
	// abort processing of other events.
	masked := make([]signal.Event, len(events))
	for i, ev := range events {
		validation := p.governance.ValidateEvent(ev)
		if !validation.IsValid() {
			result.GovernanceValidated = false
			result.ValidationIssues = append(result.ValidationIssues, validation.Violations...)
		}
		result.Warnings = append(result.Warnings, validation.Warnings...)

		masked[i] = ev
		masked[i].Text = governance.MaskPII(ev.Text)
	}

	// Classification.
	classified := p.classifier.ClassifyBatch(masked)
	for cls, n := range classified.ClassDistribution {
		result.ClassDistribution[cls] = n
	}
	result.AverageConfidence = classified.AverageConfidence

	// Gating with the batch volume map.
	gated := p.gate.Apply(classified.Results, volumeMap(masked))
	result.SignalCount = gated.SignalCount
	result.NoiseCount = gated.NoiseCount
	result.GatingSummary = gated.Summary

	// Clustering.
	clustered := p.clusterer.Cluster(gated.Signals)
	result.ClusterCount = clustered.ClusterCount
	for cat, n := range clustered.CategoryDistribution {
		result.CategoryDistribution[cat] = n
	}

	// Per-cluster scoring. Clusters are independent, so this stage
	// fans out; results land at their cluster's index to keep output
	// order stable.
	result.Analyses = make([]ClusterAnalysis, len(clustered.Clusters))
	var wg sync.WaitGroup
	for i, cl := range clustered.Clusters {
		wg.Add(1)
		go func(i int, cl *cluster.Cluster) {
			defer wg.Done()
			result.Analyses[i] = p.analyze(cl)
		}(i, cl)
	}
	wg.Wait()

	// Audit trail, fire-and-forget: a recorder failure downgrades to
	// a batch warning.
	elapsed := time.Since(start)
	for _, analysis := range result.Analyses {
		rec := buildAuditRecord(analysis, elapsed)
		if err := p.audit.Record(ctx, rec); err != nil {
			p.logger.Warn("audit record failed", "cluster_id", analysis.Cluster.ID, "error", err)
			result.Warnings = append(result.Warnings, "audit record failed for "+analysis.Cluster.ID)
		}
	}

	result.ProcessingTime = time.Since(start)
	result.ProcessingMS = result.ProcessingTime.Milliseconds()

	p.logger.Info("batch processed",
		"batch_id", result.BatchID,
		"events", result.TotalEvents,
		"signals", result.SignalCount,
		"noise", result.NoiseCount,
		"clusters", result.ClusterCount,
		"duration_ms", result.ProcessingMS,
	)
	return result, nil
}

func (p *Pipeline) analyze(cl *cluster.Cluster) ClusterAnalysis {
	riskScore := p.risk.Calculate(cl)
	confScore := p.confidence.Calculate(cl)
	return ClusterAnalysis{
		Cluster:    cl,
		Risk:       riskScore,
		Confidence: confScore,
		Rationale:  p.rationale.Generate(cl, riskScore, confScore),
		Escalation: p.router.Suggest(cl, riskScore, confScore),
	}
}

func buildAuditRecord(a ClusterAnalysis, elapsed time.Duration) audit.Record {
	probs := make(map[string]float64)
	if len(a.Cluster.Members) > 0 {
		for cls, prob := range a.Cluster.Members[0].Probabilities() {
			probs[string(cls)] = prob
		}
	}

	summary := a.Rationale.WhatSignal
	if len(summary) > 200 {
		summary = summary[:200]
	}
	assumptions := a.Rationale.Assumptions
	if len(assumptions) > 3 {
		assumptions = assumptions[:3]
	}

	return audit.Record{
		RecordID:           audit.NewRecordID(),
		ClusterID:          a.Cluster.ID,
		Timestamp:          time.Now().UTC(),
		SignalCount:        a.Cluster.Volume(),
		SignalCategory:     string(a.Cluster.Category),
		TopKeywords:        a.Cluster.TopPhrases,
		ClassProbabilities: probs,
		RiskScore:          a.Risk.TotalScore,
		RiskBreakdown:      a.Risk.Breakdown(),
		ConfidencePct:      a.Confidence.Percentage,
		ConfidenceLevel:    string(a.Confidence.Level),
		RationaleSummary:   summary,
		Assumptions:        assumptions,
		SuggestedQueue:     string(a.Escalation.SuggestedQueue),
		Priority:           a.Escalation.Priority,
		HumanDecision:      audit.DecisionPending,
		HumanUser:          "SYSTEM",
		ProcessingTimeMS:   elapsed.Milliseconds(),
		ModelVersion:       audit.ModelVersion,
	}
}

// RecordHumanDecision passes a reviewer's decision through to the
// audit trail. It does not alter pipeline state. Returns false when
// the decision is invalid or the trail rejects it.
func (p *Pipeline) RecordHumanDecision(ctx context.Context, clusterID, decision, user, reason string) bool {
	if !audit.ValidDecision(decision) {
		p.logger.Warn("rejected invalid decision", "cluster_id", clusterID, "decision", decision)
		return false
	}
	if err := p.audit.UpdateDecision(ctx, clusterID, decision, user, reason); err != nil {
		p.logger.Warn("decision update failed", "cluster_id", clusterID, "error", err)
		return false
	}
	p.logger.Info("human decision recorded", "cluster_id", clusterID, "decision", decision, "user", user)
	return true
}
