package signal

import "time"

// Category is a signal class assigned by the classifier.
type Category string

const (
	Service        Category = "SERVICE"
	Fraud          Category = "FRAUD"
	Misinformation Category = "MISINFORMATION"
	Sentiment      Category = "SENTIMENT"
	Noise          Category = "NOISE"
)

// Categories returns all classes in their canonical scoring order.
// Ties in classification resolve to the earliest entry.
func Categories() []Category {
	return []Category{Service, Fraud, Misinformation, Sentiment, Noise}
}

// Event is an immutable input item. Events are created by external
// loaders and never mutated inside the pipeline.
type Event struct {
	ID        string            `json:"event_id"`
	Text      string            `json:"text"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Region    string            `json:"region,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// KeywordContribution is a matched lexicon keyword and its
// count-weighted contribution to the winning class.
type KeywordContribution struct {
	Keyword      string  `json:"keyword"`
	Contribution float64 `json:"contribution"`
}

// ClassificationResult is produced once per event and read-only
// thereafter. Probabilities always sum to 1 within float tolerance.
type ClassificationResult struct {
	EventID       string                `json:"event_id"`
	Predicted     Category              `json:"predicted_class"`
	Confidence    float64               `json:"confidence"`
	Probabilities map[Category]float64  `json:"class_probabilities"`
	TopKeywords   []KeywordContribution `json:"top_keywords"`
	RawText       string                `json:"raw_text"`
	Source        string                `json:"source"`
	Timestamp     time.Time             `json:"timestamp"`
}

// Status is the gating outcome for a classified signal.
type Status string

const (
	Surfaced Status = "surfaced"
	Archived Status = "archived"
)

// ArchiveReason carries the threshold and actual value behind an
// archive decision. Required for audit transparency: nothing is
// silently dropped.
type ArchiveReason struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Threshold   float64 `json:"threshold_value"`
	Actual      float64 `json:"actual_value"`
}

// GatedSignal wraps a classification result with its gating decision.
// Archived signals are retained for audit review, never deleted.
type GatedSignal struct {
	ClassificationResult
	Status        Status         `json:"status"`
	ArchiveReason *ArchiveReason `json:"archive_reason,omitempty"`
}

// Signal is the canonical view of a classified item consumed by all
// downstream stages (clustering, scoring, rationale).
type Signal interface {
	Text() string
	Category() Category
	Timestamp() time.Time
	SourceType() string
	Probabilities() map[Category]float64
}

// Text returns the original event text.
func (g GatedSignal) Text() string { return g.RawText }

// Category returns the predicted class.
func (g GatedSignal) Category() Category { return g.Predicted }

// Timestamp returns the originating event timestamp.
func (g GatedSignal) Timestamp() time.Time { return g.ClassificationResult.Timestamp }

// SourceType returns the originating source label.
func (g GatedSignal) SourceType() string { return g.Source }

// Probabilities returns the full class probability map.
func (g GatedSignal) Probabilities() map[Category]float64 { return g.ClassificationResult.Probabilities }
