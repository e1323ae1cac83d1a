// Package lexicon holds the hand-authored keyword dictionaries the
// pipeline scores against. The dictionaries are data, not code: they
// can be loaded from a YAML file so weight updates don't require a
// rebuild, with compiled-in defaults matching the shipped behavior.
package lexicon

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

// Lexicon is the full keyword configuration for the pipeline.
type Lexicon struct {
	// ClassKeywords maps each class to keyword -> weight (0.5-3.5,
	// hand-tuned). Keywords may be unigrams or bigrams.
	ClassKeywords map[signal.Category]map[string]float64 `yaml:"class_keywords"`

	// ExcludedPatterns are regexes for demographic/PII-proxy text
	// removed before feature extraction. This is a fairness control,
	// not privacy redaction.
	ExcludedPatterns []string `yaml:"excluded_patterns"`

	// CategoryPhrases are the phrases counted per category when
	// summarizing a cluster.
	CategoryPhrases map[signal.Category][]string `yaml:"category_phrases"`

	// BaselineHourly is the expected signal volume per category per
	// hour, used for spike detection.
	BaselineHourly map[signal.Category]float64 `yaml:"baseline_hourly"`

	// TrustImpact maps trust-sensitive keywords to impact weights for
	// risk scoring.
	TrustImpact map[string]float64 `yaml:"trust_impact"`
}

// Load reads a lexicon from a YAML file. A missing file yields the
// compiled-in defaults and no error; a malformed file is an error.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read lexicon: %w", err)
	}

	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

// Validate checks that every class the pipeline knows has keywords.
func (l *Lexicon) Validate() error {
	for _, cls := range signal.Categories() {
		if len(l.ClassKeywords[cls]) == 0 {
			return fmt.Errorf("lexicon: no keywords for class %s", cls)
		}
	}
	return nil
}

// Default returns the shipped lexicon.
func Default() *Lexicon {
	return &Lexicon{
		ClassKeywords: map[signal.Category]map[string]float64{
			signal.Service: {
				"error": 3.0, "500": 3.5, "timeout": 3.0, "down": 2.5, "outage": 3.5,
				"failure": 3.0, "crashed": 3.0, "unavailable": 2.5, "slow": 2.0,
				"latency": 2.5, "connection": 2.0, "server": 2.0, "database": 2.5,
				"api": 2.0, "gateway": 2.5, "critical": 2.5, "warning": 2.0,
				"not working": 3.0, "can't login": 2.5, "broken": 2.5, "issue": 2.0,
				"maintenance": 1.5, "downtime": 3.0, "atm": 2.0, "stuck": 2.0,
				"frozen": 2.5, "hang": 2.0, "unresponsive": 2.5,
			},
			signal.Fraud: {
				"scam": 3.5, "fraud": 3.5, "suspicious": 3.0, "phishing": 3.5,
				"unauthorized": 3.0, "stolen": 3.0, "hacked": 3.0, "breach": 3.0,
				"otp": 2.5, "sms": 2.0, "impersonation": 3.0, "fake": 2.5,
				"cybercrime": 3.5, "identity theft": 3.5, "compromised": 3.0,
				"malware": 3.0, "ransomware": 3.5, "trojan": 3.0, "keylogger": 3.0,
				"unknown transaction": 3.0, "didn't authorize": 3.0, "not mine": 2.5,
				"card cloned": 3.5, "skimmed": 3.5,
			},
			signal.Misinformation: {
				"rumor": 3.5, "rumour": 3.5, "heard that": 2.5, "people saying": 2.5,
				"bank run": 3.5, "collapse": 3.0, "insolvent": 3.5, "bankrupt": 3.5,
				"failing": 2.5, "run out of money": 3.5, "no cash": 3.0,
				"breaking": 2.0, "alert": 1.5, "urgent": 2.0, "warning": 1.5,
				"atm empty": 3.0, "withdrawal limit": 2.0, "money safe": 2.5,
				"close account": 2.5, "move money": 2.5, "panic": 3.0,
				"crisis": 2.5, "emergency": 2.0,
			},
			signal.Sentiment: {
				"love": 2.0, "hate": 2.5, "best": 2.0, "worst": 2.5, "great": 2.0,
				"terrible": 2.5, "amazing": 2.0, "awful": 2.5, "happy": 2.0,
				"angry": 2.5, "frustrated": 2.5, "satisfied": 2.0, "disappointed": 2.5,
				"recommend": 2.0, "avoid": 2.5, "complaint": 2.5, "feedback": 2.0,
				"experience": 1.5, "service": 1.5, "staff": 1.5, "branch": 1.5,
				"thank": 2.0, "thanks": 2.0, "helpful": 2.0, "rude": 2.5,
				"unprofessional": 2.5, "excellent": 2.0,
			},
			signal.Noise: {
				"password": 2.5, "forgot": 2.0, "reset": 2.0, "login": 1.5,
				"balance": 2.0, "check": 1.5, "hours": 2.0, "branch": 1.5,
				"location": 2.0, "atm location": 2.5, "card": 1.5, "new card": 2.0,
				"activate": 2.0, "statement": 2.0, "transfer": 1.5, "how to": 2.0,
				"what is": 2.0, "where": 1.5, "when": 1.5, "fee": 1.5,
				"information": 1.5, "inquiry": 2.0, "question": 2.0,
			},
		},
		ExcludedPatterns: []string{
			`(?i)\b(mr|mrs|ms|dr)\.\s*[a-z]+\b`,          // names with titles
			`(?i)\b[a-z]+\s+(street|road|avenue|blvd)\b`, // addresses
			`(?i)\b(male|female|man|woman)\b`,            // gender words
			`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`,          // date-of-birth patterns
			`(?i)\bnationality\b`,
			`(?i)\bethnic\b`,
			`(?i)\breligion\b`,
		},
		CategoryPhrases: map[signal.Category][]string{
			signal.Service:        {"error", "down", "outage", "slow", "timeout", "failure", "unavailable"},
			signal.Fraud:          {"scam", "phishing", "unauthorized", "stolen", "hacked", "otp", "suspicious"},
			signal.Misinformation: {"rumor", "collapse", "bank run", "empty", "insolvent", "panic"},
			signal.Sentiment:      {"love", "hate", "great", "terrible", "frustrated", "happy"},
		},
		BaselineHourly: map[signal.Category]float64{
			signal.Service:        5,
			signal.Fraud:          2,
			signal.Misinformation: 1,
			signal.Sentiment:      10,
			signal.Noise:          20,
		},
		TrustImpact: map[string]float64{
			"money": 1.0, "account": 0.8, "savings": 1.0, "stolen": 1.2,
			"hacked": 1.2, "breach": 1.0, "insolvent": 1.5, "collapse": 1.5,
			"fraud": 1.0, "scam": 1.0, "safe": 0.8, "trust": 0.9,
			"down": 0.5, "outage": 0.6, "error": 0.4, "slow": 0.3,
			"complaint": 0.4, "disappointed": 0.5, "angry": 0.5,
		},
	}
}
