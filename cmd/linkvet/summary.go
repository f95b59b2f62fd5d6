package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/haukened/linkvet/internal/vet/domain"
	"github.com/haukened/linkvet/internal/vet/services/runner"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	badColor  = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

// newProgressPrinter redraws one status line per group as its links are
// evaluated and ends the line when the group is complete.
func newProgressPrinter(w io.Writer) runner.ProgressFunc {
	return func(group string, done, total int) {
		_, _ = infoColor.Fprintf(w, "\r[%d/%d] %s", done, total, group)
		if done == total {
			_, _ = fmt.Fprintln(w)
		}
	}
}

// printRunSummary writes the end of run summary.
func printRunSummary(w io.Writer, output string, res RunResult) {
	sum := res.Summary
	_, _ = infoColor.Fprintf(w, "Checked %d links in %d groups in %s\n", sum.Links, sum.Groups, res.Elapsed.Round(time.Millisecond))
	_, _ = okColor.Fprintf(w, "  valid:   %d\n", sum.Valid)
	_, _ = badColor.Fprintf(w, "  invalid: %d\n", sum.Invalid)
	if sum.Reused > 0 {
		_, _ = fmt.Fprintf(w, "  reused:  %d (cache hits %d, stale %d)\n", sum.Reused, res.Stats.Hits, res.Stats.Stale)
	}
	_, _ = fmt.Fprintf(w, "Report written to %s\n", output)
}

// printRules describes a loaded rule set.
func printRules(w io.Writer, path string, rules *domain.RuleSet) {
	_, _ = okColor.Fprintf(w, "%s is valid\n", path)
	for _, g := range rules.ForbiddenGroups() {
		_, _ = fmt.Fprintf(w, "  forbidden %s: %s\n", g.Label, strings.Join(g.Domains, ", "))
	}
	_, _ = fmt.Fprintf(w, "  allowed types: %s\n", strings.Join(rules.AllowedMIMETypes(), ", "))
	m := rules.Mention()
	_, _ = fmt.Fprintf(w, "  mentions of '%s' limited to %d in %s pages\n", m.Pattern, m.Limit, rules.InspectMIMEType())
	_, _ = infoColor.Fprintf(w, "  fingerprint %s\n", rules.Fingerprint()[:12])
}

// printCheckResults writes one line per URL and returns the number rejected.
func printCheckResults(w io.Writer, results []CheckResult) int {
	invalid := 0
	for _, r := range results {
		if r.Verdict.Violated {
			invalid++
			_, _ = badColor.Fprint(w, "INVALID")
			_, _ = fmt.Fprintf(w, " %s  %s\n", r.URL, r.Verdict.Reason)
			continue
		}
		_, _ = okColor.Fprint(w, "VALID  ")
		_, _ = fmt.Fprintf(w, " %s\n", r.URL)
	}
	return invalid
}
