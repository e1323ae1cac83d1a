// Package cluster groups surfaced signals by category within a time
// window and computes spike and velocity metrics per group.
package cluster

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/vigil/internal/lexicon"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

const (
	// DefaultWindow covers a full batch of replayed or live data.
	// Placeholder heuristic carried over from the shipped defaults,
	// not a validated threshold.
	DefaultWindow = 24 * time.Hour

	// MinClusterSize is the minimum group size to emit a cluster.
	// FRAUD and MISINFORMATION bypass it: under-reporting those is
	// the costlier error.
	MinClusterSize = 2

	// ViralVolume is the batch-relative virality threshold.
	// Placeholder heuristic, kept for behavioral compatibility.
	ViralVolume = 8

	// viralGrowthPct is the growth figure displayed for viral
	// clusters regardless of the computed velocity.
	viralGrowthPct = 300.0

	maxTopPhrases   = 5
	maxSnippets     = 3
	snippetLen      = 100
	maxRelated      = 3
	fallbackHourly  = 5.0
	minDurationMins = 1.0
)

var categoryPrefix = map[signal.Category]string{
	signal.Service:        "SVC",
	signal.Fraud:          "FRD",
	signal.Misinformation: "MIS",
	signal.Sentiment:      "SNT",
	signal.Noise:          "NOI",
}

// Cluster is a group of signals sharing category and time window.
// Immutable once built within a batch.
type Cluster struct {
	ID                string               `json:"cluster_id"`
	Category          signal.Category      `json:"category"`
	Members           []signal.GatedSignal `json:"-"`
	TopPhrases        []string             `json:"top_phrases"`
	SpikeRatio        float64              `json:"spike_ratio"`
	VelocityGrowthPct float64              `json:"velocity_growth_pct"`
	IsViral           bool                 `json:"is_viral"`
	WindowStart       time.Time            `json:"time_window_start"`
	WindowEnd         time.Time            `json:"time_window_end"`
	EvidenceSummary   string               `json:"evidence_summary"`
	ExampleSnippets   []string             `json:"example_snippets"`
	RelatedClusters   []string             `json:"related_clusters"`
}

// Volume is the member count. Every cluster has at least one member.
func (c *Cluster) Volume() int { return len(c.Members) }

// DurationMinutes is the observed member time span, clamped to at
// least one minute so rate denominators never hit zero.
func (c *Cluster) DurationMinutes() float64 {
	mins := c.WindowEnd.Sub(c.WindowStart).Minutes()
	if mins < minDurationMins {
		return minDurationMins
	}
	return mins
}

// Result is the outcome of clustering a batch of surfaced signals.
type Result struct {
	Clusters             []*Cluster
	TotalSignals         int
	ClusterCount         int
	CategoryDistribution map[signal.Category]int
	ReferenceTime        time.Time
	WindowStart          time.Time
}

// Clusterer groups signals and assigns category-prefixed IDs from
// per-category monotonic counters. Counters live on the instance and
// persist for the life of the process; IDs are unique only within it.
type Clusterer struct {
	lex    *lexicon.Lexicon
	window time.Duration

	mu       sync.Mutex
	counters map[signal.Category]int
	active   map[string]*Cluster
}

func New(lex *lexicon.Lexicon, window time.Duration) *Clusterer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Clusterer{
		lex:      lex,
		window:   window,
		counters: make(map[signal.Category]int),
		active:   make(map[string]*Cluster),
	}
}

// nextID mints the next ID for a category, e.g. "FRD-01". Serialized:
// IDs must stay unique and stable in generation order even when
// callers parallelize around the clusterer.
func (c *Clusterer) nextID(category signal.Category) string {
	prefix, ok := categoryPrefix[category]
	if !ok {
		prefix = "UNK"
	}
	c.mu.Lock()
	c.counters[category]++
	n := c.counters[category]
	c.mu.Unlock()
	return fmt.Sprintf("%s-%02d", prefix, n)
}

// topPhrases counts category phrase occurrences across member texts.
func (c *Clusterer) topPhrases(members []signal.GatedSignal, category signal.Category) []string {
	targets := c.lex.CategoryPhrases[category]
	counts := make(map[string]int)
	for _, m := range members {
		text := strings.ToLower(m.Text())
		for _, phrase := range targets {
			if strings.Contains(text, phrase) {
				counts[phrase]++
			}
		}
	}

	phrases := make([]string, 0, len(counts))
	for p := range counts {
		phrases = append(phrases, p)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if counts[phrases[i]] != counts[phrases[j]] {
			return counts[phrases[i]] > counts[phrases[j]]
		}
		return phrases[i] < phrases[j]
	})
	if len(phrases) > maxTopPhrases {
		phrases = phrases[:maxTopPhrases]
	}
	return phrases
}

// spikeRatio compares observed volume to the category's hourly
// baseline scaled to the observed duration. The denominator is
// clamped to 1 to guard division.
func (c *Clusterer) spikeRatio(volume int, category signal.Category, durationMinutes float64) float64 {
	baseline, ok := c.lex.BaselineHourly[category]
	if !ok {
		baseline = fallbackHourly
	}
	expected := baseline * (durationMinutes / 60)
	if expected < 1 {
		expected = 1
	}
	return float64(volume) / expected
}

func snippets(members []signal.GatedSignal) []string {
	out := make([]string, 0, maxSnippets)
	for _, m := range members {
		if len(out) == maxSnippets {
			break
		}
		text := m.Text()
		if text == "" {
			continue
		}
		if len(text) > snippetLen {
			// Back up to a rune boundary so a multi-byte rune
			// straddling the cut is dropped, not split.
			cut := snippetLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			out = append(out, strings.TrimSpace(text[:cut])+"...")
		} else {
			out = append(out, strings.TrimSpace(text))
		}
	}
	return out
}

func (c *Clusterer) evidenceSummary(cl *Cluster) string {
	phrases := "N/A"
	if len(cl.TopPhrases) > 0 {
		phrases = strings.Join(cl.TopPhrases, ", ")
	}
	return strings.Join([]string{
		fmt.Sprintf("Cluster %s (%s)", cl.ID, cl.Category),
		fmt.Sprintf("Volume: %d signals in %.0f min window", cl.Volume(), cl.DurationMinutes()),
		fmt.Sprintf("Spike: %.1fx baseline", cl.SpikeRatio),
		fmt.Sprintf("Top phrases: %s", phrases),
	}, "\n")
}

// relatedClusters lists other active clusters sharing category or an
// overlapping time window, capped at three. Runs only after all
// clusters of the batch exist.
func (c *Clusterer) relatedClusters(cl *Cluster) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var related []string
	for _, id := range ids {
		other := c.active[id]
		if id == cl.ID {
			continue
		}
		overlaps := !cl.WindowStart.After(other.WindowEnd) && !other.WindowStart.After(cl.WindowEnd)
		if other.Category == cl.Category || overlaps {
			related = append(related, id)
			if len(related) == maxRelated {
				break
			}
		}
	}
	return related
}

// Cluster groups a batch of surfaced signals. The reference time is
// the max member timestamp, not wall clock, so replayed historical
// batches cluster identically.
func (c *Clusterer) Cluster(gated []signal.GatedSignal) Result {
	result := Result{
		TotalSignals:         len(gated),
		CategoryDistribution: make(map[signal.Category]int),
	}
	if len(gated) == 0 {
		return result
	}

	reference := gated[0].Timestamp()
	for _, g := range gated[1:] {
		if g.Timestamp().After(reference) {
			reference = g.Timestamp()
		}
	}
	windowStart := reference.Add(-c.window)
	result.ReferenceTime = reference
	result.WindowStart = windowStart

	groups := make(map[signal.Category][]signal.GatedSignal)
	for _, g := range gated {
		if g.Timestamp().Before(windowStart) {
			continue
		}
		groups[g.Category()] = append(groups[g.Category()], g)
	}
	for cat, members := range groups {
		result.CategoryDistribution[cat] = len(members)
	}

	// Fixed category order keeps cluster IDs deterministic for
	// identical input.
	for _, category := range signal.Categories() {
		members := groups[category]
		if len(members) == 0 {
			continue
		}
		if len(members) < MinClusterSize &&
			category != signal.Fraud && category != signal.Misinformation {
			continue
		}

		first, last := members[0].Timestamp(), members[0].Timestamp()
		for _, m := range members[1:] {
			if m.Timestamp().Before(first) {
				first = m.Timestamp()
			}
			if m.Timestamp().After(last) {
				last = m.Timestamp()
			}
		}

		cl := &Cluster{
			ID:          c.nextID(category),
			Category:    category,
			Members:     members,
			WindowStart: first,
			WindowEnd:   last,
		}
		cl.TopPhrases = c.topPhrases(members, category)
		cl.SpikeRatio = c.spikeRatio(cl.Volume(), category, cl.DurationMinutes())
		cl.VelocityGrowthPct = (cl.SpikeRatio - 1) * 100
		if cl.Volume() > ViralVolume {
			cl.IsViral = true
			cl.VelocityGrowthPct = viralGrowthPct
		}
		cl.ExampleSnippets = snippets(members)
		cl.EvidenceSummary = c.evidenceSummary(cl)

		result.Clusters = append(result.Clusters, cl)
		c.mu.Lock()
		c.active[cl.ID] = cl
		c.mu.Unlock()
	}

	// Related-clusters pass, after every cluster of the batch exists.
	for _, cl := range result.Clusters {
		cl.RelatedClusters = c.relatedClusters(cl)
	}

	result.ClusterCount = len(result.Clusters)
	return result
}
