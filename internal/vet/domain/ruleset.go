package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// DefaultInspectMIMEType is the content type whose body is fetched and scanned
// for mentions when the rule set does not name one.
const DefaultInspectMIMEType = "text/html"

// ForbiddenGroup is a labelled set of domain substrings.
type ForbiddenGroup struct {
	Label   string
	Domains []string
}

// MentionRule limits how often a pattern may occur in a page's text.
// Pattern is a regular expression matched case-insensitively.
type MentionRule struct {
	Pattern string
	Limit   int
}

// RuleSet is the immutable rule configuration the verifier evaluates against.
// Build it with NewRuleSet; the zero value is not usable.
type RuleSet struct {
	forbidden   []ForbiddenGroup
	allowed     map[string]struct{}
	mention     MentionRule
	mentionRE   *regexp.Regexp
	inspect     string
	fingerprint string
}

// NewRuleSet validates and normalizes the rule parts. Domain substrings and MIME
// types are lowercased. An empty inspect type selects DefaultInspectMIMEType.
// Failures are reported as *ConfigurationError.
func NewRuleSet(forbidden []ForbiddenGroup, allowed []string, mention MentionRule, inspect string) (*RuleSet, error) {
	rs := &RuleSet{
		forbidden: make([]ForbiddenGroup, 0, len(forbidden)),
		allowed:   make(map[string]struct{}, len(allowed)),
		mention:   mention,
		inspect:   normalizeMIME(inspect),
	}
	if rs.inspect == "" {
		rs.inspect = DefaultInspectMIMEType
	}

	for _, g := range forbidden {
		label := strings.TrimSpace(g.Label)
		if label == "" {
			return nil, NewConfigurationError(KeyForbiddenDomains, errors.New("group label must not be empty"))
		}
		domains := make([]string, 0, len(g.Domains))
		for _, d := range g.Domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d == "" {
				return nil, NewConfigurationError(KeyForbiddenDomains, fmt.Errorf("group %q: domain must not be empty", label))
			}
			if !slices.Contains(domains, d) {
				domains = append(domains, d)
			}
		}
		rs.forbidden = append(rs.forbidden, ForbiddenGroup{Label: label, Domains: domains})
	}

	for _, m := range allowed {
		m = normalizeMIME(m)
		if m == "" {
			return nil, NewConfigurationError(KeyAllowedMIMETypes, errors.New("mime type must not be empty"))
		}
		rs.allowed[m] = struct{}{}
	}

	if mention.Pattern == "" {
		return nil, NewConfigurationError(KeyMention, errors.New("pattern must not be empty"))
	}
	if mention.Limit < 1 {
		return nil, NewConfigurationError(KeyMention, fmt.Errorf("limit must be at least 1, got %d", mention.Limit))
	}
	re, err := regexp.Compile("(?i)" + mention.Pattern)
	if err != nil {
		return nil, NewConfigurationError(KeyMention, fmt.Errorf("invalid pattern: %w", err))
	}
	rs.mentionRE = re
	rs.fingerprint = rs.computeFingerprint()
	return rs, nil
}

// WithInspectMIMEType returns a copy of rs that inspects pages of type mime.
func (rs *RuleSet) WithInspectMIMEType(mime string) (*RuleSet, error) {
	return NewRuleSet(rs.ForbiddenGroups(), rs.AllowedMIMETypes(), rs.mention, mime)
}

// Rule document keys.
const (
	KeyForbiddenDomains = "forbidden-domains"
	KeyAllowedMIMETypes = "allowed-mime-types"
	KeyMention          = "multiples-mentions"
	KeyInspectMIMEType  = "inspect-mime-type"
)

// normalizeMIME strips parameters and lowercases a media type.
func normalizeMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

// MatchForbidden returns the label of the first group, in stored order, with a
// substring contained in host.
func (rs *RuleSet) MatchForbidden(host string) (string, bool) {
	host = strings.ToLower(host)
	for _, g := range rs.forbidden {
		for _, d := range g.Domains {
			if strings.Contains(host, d) {
				return g.Label, true
			}
		}
	}
	return "", false
}

// AllowsMIME reports whether the media type is on the allow-list.
func (rs *RuleSet) AllowsMIME(mime string) bool {
	_, ok := rs.allowed[normalizeMIME(mime)]
	return ok
}

// Inspects reports whether pages of this media type are fetched and scanned.
func (rs *RuleSet) Inspects(mime string) bool {
	return normalizeMIME(mime) == rs.inspect
}

// CountMentions counts non-overlapping, case-insensitive matches of the
// mention pattern in text. A pattern that matches the empty string counts
// one match in empty text.
func (rs *RuleSet) CountMentions(text string) int {
	return len(rs.mentionRE.FindAllStringIndex(text, -1))
}

// ExceedsMentions reports whether count reaches the configured limit.
func (rs *RuleSet) ExceedsMentions(count int) bool {
	return count >= rs.mention.Limit
}

// ForbiddenGroups returns a copy of the forbidden groups in evaluation order.
func (rs *RuleSet) ForbiddenGroups() []ForbiddenGroup {
	out := make([]ForbiddenGroup, len(rs.forbidden))
	for i, g := range rs.forbidden {
		out[i] = ForbiddenGroup{Label: g.Label, Domains: slices.Clone(g.Domains)}
	}
	return out
}

// AllowedMIMETypes returns the allow-list sorted.
func (rs *RuleSet) AllowedMIMETypes() []string {
	out := make([]string, 0, len(rs.allowed))
	for m := range rs.allowed {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Mention returns the mention rule.
func (rs *RuleSet) Mention() MentionRule { return rs.mention }

// InspectMIMEType returns the media type selected for deep inspection.
func (rs *RuleSet) InspectMIMEType() string { return rs.inspect }

// Fingerprint identifies the rule content. Two rule sets with the same rules
// share a fingerprint regardless of the file they came from.
func (rs *RuleSet) Fingerprint() string { return rs.fingerprint }

func (rs *RuleSet) computeFingerprint() string {
	var b strings.Builder
	for _, g := range rs.forbidden {
		b.WriteString("f:")
		b.WriteString(g.Label)
		for _, d := range g.Domains {
			b.WriteByte('|')
			b.WriteString(d)
		}
		b.WriteByte('\n')
	}
	for _, m := range rs.AllowedMIMETypes() {
		b.WriteString("a:" + m + "\n")
	}
	b.WriteString("m:" + rs.mention.Pattern + "|" + strconv.Itoa(rs.mention.Limit) + "\n")
	b.WriteString("i:" + rs.inspect + "\n")
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
