package domain

import (
	"fmt"
	"time"
)

// Reason texts reported in verdicts.
const (
	ReasonUnknownMIME = "UNKNOWN MIME TYPE"

	reasonForbiddenDomain = "FORBIDDEN DOMAIN %s %s"
	reasonNotAllowedMIME  = "NOT ALLOWED MIME TYPE : %s"
	reasonMentions        = "MULTIPLE MENTIONS OF '%s': %d"
)

// Verdict is the outcome of evaluating one URL against a RuleSet.
// Pure value type; Reason is empty iff Violated is false.
type Verdict struct {
	Violated bool
	Reason   string
	Rule     RuleKind // rule that produced the violation, RuleNone when clean
}

// Clean returns a verdict without violation.
func Clean() Verdict { return Verdict{} }

// Violation builds a violated verdict for the given rule.
func Violation(rule RuleKind, reason string) Verdict {
	return Verdict{Violated: true, Reason: reason, Rule: rule}
}

// ForbiddenDomain reports a host matching a forbidden group.
func ForbiddenDomain(label, host string) Verdict {
	return Violation(RuleDomain, fmt.Sprintf(reasonForbiddenDomain, label, host))
}

// UnknownMIME reports a URL whose content type could not be determined.
func UnknownMIME() Verdict {
	return Violation(RuleMIME, ReasonUnknownMIME)
}

// NotAllowedMIME reports a content type outside the allow-list.
func NotAllowedMIME(mime string) Verdict {
	return Violation(RuleMIME, fmt.Sprintf(reasonNotAllowedMIME, mime))
}

// TooManyMentions reports a page whose pattern count reached the limit.
func TooManyMentions(pattern string, count int) Verdict {
	return Violation(RuleMention, fmt.Sprintf(reasonMentions, pattern, count))
}

// Valid renders the verdict as the report's validity column.
func (v Verdict) Valid() string {
	if v.Violated {
		return "No"
	}
	return "Yes"
}

// Inconclusive reports whether the verdict stems from a failed probe rather
// than from the remote content. Such verdicts must not be reused.
func (v Verdict) Inconclusive() bool {
	return v.Violated && v.Reason == ReasonUnknownMIME
}

// StoredVerdict is a verdict together with the time it was produced.
type StoredVerdict struct {
	Verdict   Verdict
	CheckedAt time.Time
}

// Fresh reports whether the entry is younger than maxAge at now.
// A non-positive maxAge never expires.
func (s StoredVerdict) Fresh(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return true
	}
	return now.Sub(s.CheckedAt) < maxAge
}
