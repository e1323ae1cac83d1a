// Package classifier scores free text against the fixed per-class
// keyword lexicon. It is a pure function of the input text and the
// lexicon: no training, no side effects, and every prediction comes
// with the keywords that produced it.
package classifier

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/vigil/internal/lexicon"
	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	mentionPattern = regexp.MustCompile(`[@#](\w+)`)
	punctPattern   = regexp.MustCompile(`[^\w\s]`)
)

// BatchResult summarizes classification across a batch of events.
type BatchResult struct {
	Results           []signal.ClassificationResult
	ClassDistribution map[signal.Category]int
	AverageConfidence float64
}

// Classifier assigns one of the five signal classes to event text.
type Classifier struct {
	lex        *lexicon.Lexicon
	vocabulary map[string]struct{}
	excluded   []*regexp.Regexp
	priors     map[signal.Category]float64
}

// New builds a classifier from the given lexicon. Priors are uniform.
func New(lex *lexicon.Lexicon) (*Classifier, error) {
	c := &Classifier{
		lex:        lex,
		vocabulary: make(map[string]struct{}),
		priors:     make(map[signal.Category]float64),
	}

	for _, keywords := range lex.ClassKeywords {
		for kw := range keywords {
			c.vocabulary[kw] = struct{}{}
		}
	}
	for _, cls := range signal.Categories() {
		c.priors[cls] = 1.0 / float64(len(signal.Categories()))
	}
	for _, pat := range lex.ExcludedPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("compile excluded pattern %q: %w", pat, err)
		}
		c.excluded = append(c.excluded, re)
	}
	return c, nil
}

// preprocess lowercases the text and strips URLs, mention markers,
// punctuation, and the demographic proxy patterns. Proxy removal
// happens before feature extraction so sensitive terms never reach
// the scorer.
func (c *Classifier) preprocess(text string) string {
	text = strings.ToLower(text)
	for _, re := range c.excluded {
		text = re.ReplaceAllString(text, "")
	}
	text = urlPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "$1")
	text = punctPattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// extractKeywords counts vocabulary matches over unigrams and bigrams.
func (c *Classifier) extractKeywords(text string) map[string]int {
	counts := make(map[string]int)
	words := strings.Fields(text)

	for _, w := range words {
		if _, ok := c.vocabulary[w]; ok {
			counts[w]++
		}
	}
	for i := 0; i+1 < len(words); i++ {
		bigram := words[i] + " " + words[i+1]
		if _, ok := c.vocabulary[bigram]; ok {
			counts[bigram]++
		}
	}
	return counts
}

// classScores computes the log-probability score per class:
// ln(prior) + sum over matched keywords of count * ln(1 + weight).
func (c *Classifier) classScores(keywords map[string]int) map[signal.Category]float64 {
	scores := make(map[signal.Category]float64, len(c.priors))
	for _, cls := range signal.Categories() {
		score := math.Log(c.priors[cls])
		classKeywords := c.lex.ClassKeywords[cls]
		for kw, count := range keywords {
			if weight, ok := classKeywords[kw]; ok {
				score += float64(count) * math.Log(1+weight)
			}
		}
		scores[cls] = score
	}
	return scores
}

// softmax converts log-scores to probabilities, subtracting the max
// score first for numeric stability. With no keyword matches every
// class ends up at the uniform prior; there is no division by zero.
func softmax(scores map[signal.Category]float64) map[signal.Category]float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	exp := make(map[signal.Category]float64, len(scores))
	var total float64
	for cls, s := range scores {
		e := math.Exp(s - maxScore)
		exp[cls] = e
		total += e
	}
	for cls := range exp {
		exp[cls] /= total
	}
	return exp
}

// topContributions ranks the winning class's matched keywords by
// count x weight and keeps the top five.
func (c *Classifier) topContributions(keywords map[string]int, predicted signal.Category) []signal.KeywordContribution {
	classKeywords := c.lex.ClassKeywords[predicted]

	var contributions []signal.KeywordContribution
	for kw, count := range keywords {
		if weight, ok := classKeywords[kw]; ok {
			contributions = append(contributions, signal.KeywordContribution{
				Keyword:      kw,
				Contribution: float64(count) * weight,
			})
		}
	}
	sort.Slice(contributions, func(i, j int) bool {
		if contributions[i].Contribution != contributions[j].Contribution {
			return contributions[i].Contribution > contributions[j].Contribution
		}
		return contributions[i].Keyword < contributions[j].Keyword
	})
	if len(contributions) > 5 {
		contributions = contributions[:5]
	}
	return contributions
}

// Classify scores a single event. A malformed event (missing text or
// id) degrades to a defined low-confidence result rather than failing,
// so one bad event never aborts a batch.
func (c *Classifier) Classify(ev signal.Event) signal.ClassificationResult {
	eventID := ev.ID
	if eventID == "" {
		eventID = "unknown"
	}

	processed := c.preprocess(ev.Text)
	keywords := c.extractKeywords(processed)
	probs := softmax(c.classScores(keywords))

	// Arg-max in canonical class order: ties resolve to the earliest
	// class, keeping empty-text results deterministic.
	predicted := signal.Categories()[0]
	for _, cls := range signal.Categories() {
		if probs[cls] > probs[predicted] {
			predicted = cls
		}
	}

	return signal.ClassificationResult{
		EventID:       eventID,
		Predicted:     predicted,
		Confidence:    probs[predicted],
		Probabilities: probs,
		TopKeywords:   c.topContributions(keywords, predicted),
		RawText:       ev.Text,
		Source:        ev.Source,
		Timestamp:     ev.Timestamp,
	}
}

// ClassifyBatch classifies all events and computes batch statistics.
func (c *Classifier) ClassifyBatch(events []signal.Event) BatchResult {
	results := make([]signal.ClassificationResult, 0, len(events))
	distribution := make(map[signal.Category]int)
	var confidenceSum float64

	for _, ev := range events {
		res := c.Classify(ev)
		results = append(results, res)
		distribution[res.Predicted]++
		confidenceSum += res.Confidence
	}

	avg := 0.0
	if len(results) > 0 {
		avg = confidenceSum / float64(len(results))
	}
	return BatchResult{
		Results:           results,
		ClassDistribution: distribution,
		AverageConfidence: avg,
	}
}

// Explain renders a human-readable account of a classification for
// analyst review.
func (c *Classifier) Explain(res signal.ClassificationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classification: %s\n", res.Predicted)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n\n", res.Confidence*100)
	b.WriteString("Why this classification?\n")

	if len(res.TopKeywords) > 0 {
		b.WriteString("Top contributing keywords:\n")
		for _, kc := range res.TopKeywords {
			fmt.Fprintf(&b, "  - %q (weight: %.2f)\n", kc.Keyword, kc.Contribution)
		}
	} else {
		b.WriteString("  No strong keyword matches found (default classification)\n")
	}

	b.WriteString("\nClass probabilities:\n")
	ordered := make([]signal.Category, 0, len(res.Probabilities))
	ordered = append(ordered, signal.Categories()...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return res.Probabilities[ordered[i]] > res.Probabilities[ordered[j]]
	})
	for _, cls := range ordered {
		fmt.Fprintf(&b, "  %-15s %5.1f%%\n", cls, res.Probabilities[cls]*100)
	}
	return b.String()
}
