package domain

import "fmt"

// RuleKind identifies one step of the evaluation pipeline.
//
// domain  - forbidden-domain substring check, no network access
// mime    - content-type lookup and allow-list check
// mention - full-text fetch and pattern frequency check
type RuleKind uint8

const (
	// RuleNone is the zero value carried by clean verdicts.
	RuleNone RuleKind = iota
	// RuleDomain rejects URLs whose host contains a forbidden substring.
	RuleDomain
	// RuleMIME rejects URLs with an unknown or disallowed content type.
	RuleMIME
	// RuleMention rejects pages that mention the configured pattern too often.
	RuleMention
)

// String returns a stable string representation of the rule kind.
func (k RuleKind) String() string {
	switch k {
	case RuleNone:
		return "none"
	case RuleDomain:
		return "domain"
	case RuleMIME:
		return "mime"
	case RuleMention:
		return "mention"
	default:
		return fmt.Sprintf("RuleKind(%d)", k)
	}
}

// Pipeline returns the fixed evaluation order. The order is significant:
// cheaper checks run first and a violation stops evaluation.
func Pipeline() []RuleKind {
	return []RuleKind{RuleDomain, RuleMIME, RuleMention}
}
