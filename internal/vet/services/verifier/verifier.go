package verifier

import (
	"context"
	"errors"

	"github.com/haukened/linkvet/internal/vet/common/log"
	"github.com/haukened/linkvet/internal/vet/common/utils"
	"github.com/haukened/linkvet/internal/vet/domain"
)

var (
	ErrRulesRequired = errors.New("rule set is required")
	ErrProbeRequired = errors.New("probe is required")
)

// outcome is what a single rule step decides.
type outcome uint8

const (
	next      outcome = iota // the rule passed, run the following one
	violation                // stop with the step's verdict
	clean                    // stop, nothing left to check
)

// Verifier evaluates URLs against an immutable RuleSet. It holds no mutable
// state and is safe for concurrent use.
type Verifier struct {
	rules  *domain.RuleSet
	probe  Probe
	logger log.Logger
}

// Options configures New.
type Options struct {
	Rules  *domain.RuleSet
	Probe  Probe
	Logger log.Logger
}

// New returns a Verifier for opts.
func New(opts Options) (*Verifier, error) {
	if opts.Rules == nil {
		return nil, ErrRulesRequired
	}
	if opts.Probe == nil {
		return nil, ErrProbeRequired
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Verifier{rules: opts.Rules, probe: opts.Probe, logger: opts.Logger}, nil
}

// Rules returns the rule set the verifier evaluates against.
func (v *Verifier) Rules() *domain.RuleSet { return v.rules }

// Evaluate runs the rule pipeline on url and returns exactly one verdict.
// Evaluation stops at the first violation, so no fetch is made for a URL
// rejected by an earlier rule.
func (v *Verifier) Evaluate(ctx context.Context, url string) domain.Verdict {
	var probed domain.ProbeResult
	for _, rule := range domain.Pipeline() {
		var (
			res     outcome
			verdict domain.Verdict
		)
		switch rule {
		case domain.RuleDomain:
			res, verdict = v.checkDomain(url)
		case domain.RuleMIME:
			res, verdict = v.checkMIME(ctx, url, &probed)
		case domain.RuleMention:
			res, verdict = v.checkMention(ctx, url, &probed)
		default:
			continue
		}
		switch res {
		case violation:
			return v.decide(url, rule, probed, verdict)
		case clean:
			return v.decide(url, rule, probed, domain.Clean())
		}
	}
	return v.decide(url, domain.RuleNone, probed, domain.Clean())
}

func (v *Verifier) decide(url string, at domain.RuleKind, probed domain.ProbeResult, verdict domain.Verdict) domain.Verdict {
	v.logger.Debug(map[string]any{
		"url":        url,
		"rule":       at.String(),
		"mime":       probed.MIMEType,
		"body_bytes": len(probed.Body),
		"violated":   verdict.Violated,
		"reason":     verdict.Reason,
	}, "url evaluated")
	return verdict
}

func (v *Verifier) checkDomain(url string) (outcome, domain.Verdict) {
	host := utils.HostOf(url)
	if label, ok := v.rules.MatchForbidden(host); ok {
		return violation, domain.ForbiddenDomain(label, host)
	}
	return next, domain.Verdict{}
}

func (v *Verifier) checkMIME(ctx context.Context, url string, probed *domain.ProbeResult) (outcome, domain.Verdict) {
	if mime, ok := v.probe.FetchMIMEType(ctx, url); ok {
		probed.MIMEType = mime
	}
	if !probed.HasMIMEType() {
		return violation, domain.UnknownMIME()
	}
	if !v.rules.AllowsMIME(probed.MIMEType) {
		return violation, domain.NotAllowedMIME(probed.MIMEType)
	}
	if v.rules.Inspects(probed.MIMEType) {
		return next, domain.Verdict{}
	}
	return clean, domain.Verdict{}
}

func (v *Verifier) checkMention(ctx context.Context, url string, probed *domain.ProbeResult) (outcome, domain.Verdict) {
	probed.Body = v.probe.FetchText(ctx, url)
	count := v.rules.CountMentions(probed.Body)
	if v.rules.ExceedsMentions(count) {
		return violation, domain.TooManyMentions(v.rules.Mention().Pattern, count)
	}
	return clean, domain.Verdict{}
}
