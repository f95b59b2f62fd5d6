package runner

import (
	"context"

	"github.com/haukened/linkvet/internal/vet/domain"
)

// Evaluator decides the verdict of a single URL.
type Evaluator interface {
	Evaluate(ctx context.Context, url string) domain.Verdict
}

// Sink receives report rows in order.
type Sink interface {
	Write(rec domain.Record) error
}

// VerdictRepository reuses verdicts already computed for a URL.
type VerdictRepository interface {
	Lookup(url string) (domain.Verdict, bool)
	Record(url string, v domain.Verdict) error
}
