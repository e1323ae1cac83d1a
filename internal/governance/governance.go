// Package governance enforces the hard input boundaries: no live
// customer data, known source types only, PII masked before any text
// reaches the classifier. Violations flag the batch but never abort
// processing of other events.
package governance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/vigil/internal/signal"
)

var liveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{16}\b`),                       // card numbers
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),            // SSN format
	regexp.MustCompile(`(?i)\bIBAN\s*[A-Z]{2}\d{2}[A-Z0-9]{1,30}\b`),
	regexp.MustCompile(`(?i)\blive\s*feed\b`),
	regexp.MustCompile(`(?i)\breal\s*time\s*api\b`),
	regexp.MustCompile(`(?i)\bproduction\s*data\b`),
}

var (
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	accountPattern = regexp.MustCompile(`\b\d{8,16}\b`)
)

var allowedSources = map[string]struct{}{
	"Tweet":          {},
	"Support Ticket": {},
	"App Log":        {},
	"News Feed":      {},
}

// panicTerms rewrites panic-inducing language into measured
// operational wording on operator-facing surfaces.
var panicTerms = []struct{ from, to string }{
	{"bank is failing", "potential solvency indicators detected"},
	{"all money is gone", "significant liquidity outflow pattern"},
	{"run on the bank", "abnormal withdrawal volume concentration"},
	{"collapse", "structural integrity risk"},
	{"panic", "heightened customer anxiety"},
}

// ValidationResult reports boundary violations and softer warnings
// for a single event.
type ValidationResult struct {
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
}

// IsValid reports whether the event crossed no hard boundary.
func (r ValidationResult) IsValid() bool { return len(r.Violations) == 0 }

// Validator performs the pre-classification governance checks.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateEvent checks one event against the input boundaries.
func (v *Validator) ValidateEvent(ev signal.Event) ValidationResult {
	var result ValidationResult

	if ev.ID == "" {
		result.Violations = append(result.Violations, "event is missing an id")
	}
	if strings.TrimSpace(ev.Text) == "" {
		result.Warnings = append(result.Warnings, fmt.Sprintf("event %s has empty text", ev.ID))
	}

	for _, pat := range liveDataPatterns {
		if pat.MatchString(ev.Text) {
			result.Violations = append(result.Violations,
				fmt.Sprintf("event %s matches prohibited live-data pattern %s", ev.ID, pat.String()))
		}
	}

	if ev.Source != "" {
		if _, ok := allowedSources[ev.Source]; !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("event %s has unrecognized source %q", ev.ID, ev.Source))
		}
	}

	return result
}

// MaskPII redacts emails and bare account numbers from text.
func MaskPII(text string) string {
	text = emailPattern.ReplaceAllString(text, "[EMAIL_REDACTED]")
	return accountPattern.ReplaceAllString(text, "[ACCOUNT_REDACTED]")
}

// ProfessionalTone replaces panic-inducing phrasing, case
// insensitively, with bracketed professional terminology.
func ProfessionalTone(text string) string {
	for _, term := range panicTerms {
		pat := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term.from))
		text = pat.ReplaceAllString(text, "["+term.to+"]")
	}
	return text
}
