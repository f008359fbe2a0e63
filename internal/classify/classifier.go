// Package classify scores scanned message records and assigns them to the
// cleanable, manual or ignored bucket. Classification is a pure function of
// the record; it never performs I/O.
package classify

import (
	"errors"
	"strings"
	"unicode"

	"inboxsweep/internal/model"
	"inboxsweep/internal/util"
)

// ErrClassificationSkipped marks a record too malformed to score.
var ErrClassificationSkipped = errors.New("classification skipped")

// Classifier applies a rule set to records.
type Classifier struct {
	rules Rules
}

// New returns a Classifier for rules. A zero Threshold is kept as is; use
// DefaultRules to start from the built-in vocabulary.
func New(rules Rules) *Classifier {
	r := rules
	r.High = lowerAll(r.High)
	r.Medium = lowerAll(r.Medium)
	r.Low = lowerAll(r.Low)
	r.Transactional = lowerAll(r.Transactional)
	r.InfrastructureDomains = lowerAll(r.InfrastructureDomains)
	r.InfrastructureLocals = lowerAll(r.InfrastructureLocals)
	return &Classifier{rules: r}
}

// Rules returns the normalized rule set in use.
func (c *Classifier) Rules() Rules { return c.rules }

// Classify scores a record and derives its bucket.
//
// A structured http(s) unsubscribe URL or a native provider unsubscribe
// control is structural evidence and always yields Cleanable. Without it a
// record can only be Manual or Ignored: a transactional subject forces
// Ignored, otherwise the score is compared to the threshold.
func (c *Classifier) Classify(r model.Record) (model.ScoredRecord, error) {
	if err := validate(r); err != nil {
		return model.ScoredRecord{}, err
	}
	sr := model.ScoredRecord{Record: r, Score: c.Score(r)}

	switch {
	case r.Unsubscribe.HasURL() || r.NativeUnsubscribe:
		sr.Bucket = model.Cleanable
	case c.IsTransactional(r.Subject):
		sr.Bucket = model.Ignored
	case sr.Score >= c.rules.Threshold:
		sr.Bucket = model.Manual
	default:
		sr.Bucket = model.Ignored
	}
	return sr, nil
}

// Score sums the weights of every matched tier.
func (c *Classifier) Score(r model.Record) int {
	text := strings.ToLower(r.Subject + "\n" + r.Snippet)
	score := 0
	if containsAny(text, c.rules.High) {
		score += c.rules.WeightHigh
	}
	if containsAny(text, c.rules.Medium) {
		score += c.rules.WeightMedium
	}
	if r.InPromotions || containsAny(text, c.rules.Low) {
		score += c.rules.WeightLow
	}
	if c.isInfrastructureSender(r.SenderEmail) {
		score += c.rules.WeightInfrastructure
	}
	if r.NativeUnsubscribe {
		score += c.rules.WeightNative
	}
	return score
}

// IsTransactional reports whether subject carries a transactional keyword.
func (c *Classifier) IsTransactional(subject string) bool {
	s := strings.ToLower(subject)
	for _, kw := range c.rules.Transactional {
		if kw != "" && hasWordPrefix(s, kw) {
			return true
		}
	}
	return false
}

func (c *Classifier) isInfrastructureSender(email string) bool {
	domain := util.DomainOf(email)
	if domain == "" {
		return false
	}
	for _, d := range c.rules.InfrastructureDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	local := util.NormalizeEmail(email)
	local = local[:strings.LastIndexByte(local, '@')]
	for _, p := range c.rules.InfrastructureLocals {
		if p != "" && strings.HasPrefix(local, p) {
			return true
		}
	}
	return false
}

func validate(r model.Record) error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.Join(ErrClassificationSkipped, errors.New("record has no id"))
	}
	noSender := util.IsUnresolved(r.SenderEmail) &&
		(strings.TrimSpace(r.SenderName) == "" || r.SenderName == model.UnknownName)
	if noSender && strings.TrimSpace(r.Subject) == "" && strings.TrimSpace(r.Snippet) == "" {
		return errors.Join(ErrClassificationSkipped, errors.New("record has no sender, subject or snippet"))
	}
	return nil
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// hasWordPrefix reports whether kw occurs in s starting at a word boundary,
// so "order" matches "orders" but not "border".
func hasWordPrefix(s, kw string) bool {
	for i := 0; i+len(kw) <= len(s); {
		j := strings.Index(s[i:], kw)
		if j < 0 {
			return false
		}
		pos := i + j
		if pos == 0 || !isWordByte(s[pos-1]) {
			return true
		}
		i = pos + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b < 0x80 && (unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b)))
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
