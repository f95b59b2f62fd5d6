// Package ruleset loads the verifier's RuleSet from a rule document.
//
// The document has three required sections and one optional key:
//
//	forbidden-domains:  mapping of label -> list of domain substrings
//	allowed-mime-types: list of media types
//	multiples-mentions: {pattern (or regex), limit}
//	inspect-mime-type:  media type scanned for mentions (default text/html)
//
// Any missing or malformed section fails the load with a
// *domain.ConfigurationError.
package ruleset

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/haukened/linkvet/internal/vet/domain"
	"github.com/haukened/linkvet/internal/vet/repos/document"
)

var errMissing = errors.New("required key is missing")

// rulesDocument is the decoded form checked by the validator before the
// domain RuleSet is constructed.
type rulesDocument struct {
	Forbidden []forbiddenGroup `validate:"dive"`
	Allowed   []string         `validate:"dive,required"`
	Pattern   string           `validate:"required"`
	Limit     int              `validate:"gte=1"`
	Inspect   string           `validate:"omitempty,contains=/"`
}

type forbiddenGroup struct {
	Label   string   `validate:"required"`
	Domains []string `validate:"dive,required"`
}

// Load reads the rule document at path.
func Load(fs afero.Fs, path string) (*domain.RuleSet, error) {
	raw, order, err := document.ReadOrdered(fs, path, domain.KeyForbiddenDomains)
	if err != nil {
		return nil, &domain.ConfigurationError{Source: path, Err: err}
	}
	rs, err := fromMap(raw, order)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = path
			return nil, cfgErr
		}
		return nil, &domain.ConfigurationError{Source: path, Err: err}
	}
	return rs, nil
}

// FromMap builds a RuleSet from an already parsed document. A parsed mapping
// has lost its key order, so forbidden groups are stored sorted by label.
func FromMap(raw map[string]any) (*domain.RuleSet, error) {
	return fromMap(raw, nil)
}

// fromMap stores forbidden groups in labelOrder, the order of the labels in
// the source file. Labels missing from it follow, sorted.
func fromMap(raw map[string]any, labelOrder []string) (*domain.RuleSet, error) {
	doc, err := decode(raw, labelOrder)
	if err != nil {
		return nil, err
	}

	if err := validate(doc); err != nil {
		return nil, err
	}

	groups := make([]domain.ForbiddenGroup, 0, len(doc.Forbidden))
	for _, g := range doc.Forbidden {
		groups = append(groups, domain.ForbiddenGroup{Label: g.Label, Domains: g.Domains})
	}
	return domain.NewRuleSet(groups, doc.Allowed, domain.MentionRule{Pattern: doc.Pattern, Limit: doc.Limit}, doc.Inspect)
}

func decode(raw map[string]any, labelOrder []string) (rulesDocument, error) {
	var doc rulesDocument

	val, ok := raw[domain.KeyForbiddenDomains]
	if !ok {
		return doc, domain.NewConfigurationError(domain.KeyForbiddenDomains, errMissing)
	}
	labels, err := document.Map(val)
	if err != nil {
		return doc, domain.NewConfigurationError(domain.KeyForbiddenDomains, err)
	}
	for _, label := range orderedLabels(labels, labelOrder) {
		domains, err := document.Strings(labels[label])
		if err != nil {
			return doc, domain.NewConfigurationError(domain.KeyForbiddenDomains, fmt.Errorf("group %q: %w", label, err))
		}
		doc.Forbidden = append(doc.Forbidden, forbiddenGroup{Label: label, Domains: domains})
	}

	val, ok = raw[domain.KeyAllowedMIMETypes]
	if !ok {
		return doc, domain.NewConfigurationError(domain.KeyAllowedMIMETypes, errMissing)
	}
	if doc.Allowed, err = document.Strings(val); err != nil {
		return doc, domain.NewConfigurationError(domain.KeyAllowedMIMETypes, err)
	}

	val, ok = raw[domain.KeyMention]
	if !ok {
		return doc, domain.NewConfigurationError(domain.KeyMention, errMissing)
	}
	mention, err := document.Map(val)
	if err != nil {
		return doc, domain.NewConfigurationError(domain.KeyMention, err)
	}
	pattern, ok := mention["pattern"]
	if !ok {
		pattern, ok = mention["regex"]
	}
	if !ok {
		return doc, domain.NewConfigurationError(domain.KeyMention, errors.New("pattern is missing"))
	}
	if doc.Pattern, ok = pattern.(string); !ok {
		return doc, domain.NewConfigurationError(domain.KeyMention, fmt.Errorf("pattern: expected string, got %T", pattern))
	}
	limit, ok := mention["limit"]
	if !ok {
		return doc, domain.NewConfigurationError(domain.KeyMention, errors.New("limit is missing"))
	}
	if doc.Limit, err = document.Int(limit); err != nil {
		return doc, domain.NewConfigurationError(domain.KeyMention, fmt.Errorf("limit: %w", err))
	}

	if val, ok := raw[domain.KeyInspectMIMEType]; ok {
		if doc.Inspect, ok = val.(string); !ok {
			return doc, domain.NewConfigurationError(domain.KeyInspectMIMEType, fmt.Errorf("expected string, got %T", val))
		}
	}
	return doc, nil
}

func orderedLabels(labels map[string]any, order []string) []string {
	names := make([]string, 0, len(labels))
	for _, label := range order {
		if _, ok := labels[label]; ok && !slices.Contains(names, label) {
			names = append(names, label)
		}
	}
	var rest []string
	for label := range labels {
		if !slices.Contains(names, label) {
			rest = append(rest, label)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// fieldKeys maps validator struct fields back to document keys.
var fieldKeys = map[string]string{
	"Forbidden": domain.KeyForbiddenDomains,
	"Label":     domain.KeyForbiddenDomains,
	"Domains":   domain.KeyForbiddenDomains,
	"Allowed":   domain.KeyAllowedMIMETypes,
	"Pattern":   domain.KeyMention,
	"Limit":     domain.KeyMention,
	"Inspect":   domain.KeyInspectMIMEType,
}

func validate(doc rulesDocument) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.StructField()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		key := fieldKeys[field]
		return domain.NewConfigurationError(key, fmt.Errorf("%s failed %q validation", fe.Namespace(), fe.Tag()))
	}
	return domain.NewConfigurationError("", err)
}
