package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/haukened/linkvet/internal/vet/common/log"
	"github.com/haukened/linkvet/internal/vet/domain"
)

const (
	defaultWorkers = 4
	defaultReview  = "No"
)

var (
	ErrEvaluatorRequired = errors.New("evaluator is required")
	ErrSinkRequired      = errors.New("sink is required")
)

// Summary counts what a run produced.
type Summary struct {
	Groups  int
	Links   int
	Valid   int
	Invalid int
	Reused  int // verdicts answered by the repository
}

// ProgressFunc is told how many links of group have been evaluated. Calls
// for one group are serialized and done grows by one each time.
type ProgressFunc func(group string, done, total int)

// Runner walks link groups, evaluates every link and writes one row per link.
type Runner struct {
	evaluator Evaluator
	sink      Sink
	repo      VerdictRepository
	workers   int
	review    string
	logger    log.Logger
	progress  ProgressFunc
	inflight  singleflight.Group
}

// Options configures New.
type Options struct {
	Evaluator  Evaluator
	Sink       Sink
	Repository VerdictRepository // optional
	Workers    int
	Review     string
	Logger     log.Logger
	Progress   ProgressFunc // optional
}

// New returns a Runner for opts.
func New(opts Options) (*Runner, error) {
	if opts.Evaluator == nil {
		return nil, ErrEvaluatorRequired
	}
	if opts.Sink == nil {
		return nil, ErrSinkRequired
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Review == "" {
		opts.Review = defaultReview
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Runner{
		evaluator: opts.Evaluator,
		sink:      opts.Sink,
		repo:      opts.Repository,
		workers:   opts.Workers,
		review:    opts.Review,
		logger:    opts.Logger,
		progress:  opts.Progress,
	}, nil
}

// evaluation is the result for one link of a group.
type evaluation struct {
	verdict domain.Verdict
	reused  bool
}

// Run processes groups in name order. Links of a group are evaluated
// concurrently and written in their input order once the group is done.
// It stops early only when ctx is cancelled or the sink fails.
func (r *Runner) Run(ctx context.Context, groups []domain.LinkGroup) (Summary, error) {
	ordered := slices.Clone(groups)
	slices.SortStableFunc(ordered, func(a, b domain.LinkGroup) int {
		return strings.Compare(a.Name, b.Name)
	})

	var sum Summary
	for _, group := range ordered {
		results, err := r.evaluateGroup(ctx, group)
		if err != nil {
			return sum, err
		}
		for i, url := range group.Links {
			res := results[i]
			if err := r.sink.Write(domain.NewRecord(group.Name, url, res.verdict, r.review)); err != nil {
				return sum, fmt.Errorf("group %q: %w", group.Name, err)
			}
			sum.Links++
			if res.verdict.Violated {
				sum.Invalid++
			} else {
				sum.Valid++
			}
			if res.reused {
				sum.Reused++
			}
		}
		sum.Groups++
		r.logger.Info(map[string]any{"group": group.Name, "links": len(group.Links)}, "group processed")
	}
	return sum, nil
}

func (r *Runner) evaluateGroup(ctx context.Context, group domain.LinkGroup) ([]evaluation, error) {
	results := make([]evaluation, len(group.Links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	var mu sync.Mutex
	done := 0
	for i, url := range group.Links {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.evaluate(gctx, url)
			if r.progress != nil {
				mu.Lock()
				done++
				r.progress(group.Name, done, len(group.Links))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// verdicts computed while ctx was being cancelled are not trustworthy
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluate answers from the repository when possible. Concurrent requests
// for the same URL share one evaluation.
func (r *Runner) evaluate(ctx context.Context, url string) evaluation {
	if r.repo != nil {
		if v, ok := r.repo.Lookup(url); ok {
			return evaluation{verdict: v, reused: true}
		}
	}

	var computed bool
	out, _, shared := r.inflight.Do(url, func() (any, error) {
		computed = true
		v := r.evaluator.Evaluate(ctx, url)
		if r.repo != nil && ctx.Err() == nil {
			if err := r.repo.Record(url, v); err != nil {
				r.logger.Warn(map[string]any{"url": url, "error": err.Error()}, "failed to record verdict")
			}
		}
		return v, nil
	})
	return evaluation{verdict: out.(domain.Verdict), reused: shared && !computed}
}
