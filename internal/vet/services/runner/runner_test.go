package runner

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/haukened/linkvet/internal/vet/common/log"
	"github.com/haukened/linkvet/internal/vet/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// funcEvaluator adapts a function to Evaluator.
type funcEvaluator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, url string) domain.Verdict
}

func (f *funcEvaluator) Evaluate(ctx context.Context, url string) domain.Verdict {
	f.calls.Add(1)
	return f.fn(ctx, url)
}

// memorySink records rows in write order.
type memorySink struct {
	mu      sync.Mutex
	rows    []domain.Record
	failAt  int // 1-based row that fails, 0 never
	failErr error
}

func (s *memorySink) Write(rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.rows)+1 == s.failAt {
		return s.failErr
	}
	s.rows = append(s.rows, rec)
	return nil
}

// MockRepository implements VerdictRepository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Lookup(url string) (domain.Verdict, bool) {
	args := m.Called(url)
	return args.Get(0).(domain.Verdict), args.Bool(1)
}

func (m *MockRepository) Record(url string, v domain.Verdict) error {
	args := m.Called(url, v)
	return args.Error(0)
}

func byHost(_ context.Context, url string) domain.Verdict {
	if url == "http://bad.test/" {
		return domain.NotAllowedMIME("image/gif")
	}
	return domain.Clean()
}

func newTestRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Sink: &memorySink{}})
	assert.ErrorIs(t, err, ErrEvaluatorRequired)

	_, err = New(Options{Evaluator: &funcEvaluator{fn: byHost}})
	assert.ErrorIs(t, err, ErrSinkRequired)

	r, err := New(Options{Evaluator: &funcEvaluator{fn: byHost}, Sink: &memorySink{}})
	require.NoError(t, err)
	assert.Equal(t, defaultWorkers, r.workers)
	assert.Equal(t, "No", r.review)
}

func TestRun_WritesRowsInGroupAndInputOrder(t *testing.T) {
	sink := &memorySink{}
	r := newTestRunner(t, Options{Evaluator: &funcEvaluator{fn: byHost}, Sink: sink, Workers: 3})

	groups := []domain.LinkGroup{
		{Name: "zeta", Links: []string{"http://z1.test/"}},
		{Name: "alpha", Links: []string{"http://bad.test/", "http://a2.test/"}},
	}
	sum, err := r.Run(context.Background(), groups)
	require.NoError(t, err)

	want := []domain.Record{
		{Group: "alpha", Valid: "No", Reason: "NOT ALLOWED MIME TYPE : image/gif", Review: "No", URL: "http://bad.test/"},
		{Group: "alpha", Valid: "Yes", Reason: "", Review: "No", URL: "http://a2.test/"},
		{Group: "zeta", Valid: "Yes", Reason: "", Review: "No", URL: "http://z1.test/"},
	}
	assert.Equal(t, want, sink.rows)
	assert.Equal(t, Summary{Groups: 2, Links: 3, Valid: 2, Invalid: 1}, sum)
	assert.Equal(t, "zeta", groups[0].Name, "input slice must not be reordered")
}

func TestRun_OrderIndependentOfWorkerCount(t *testing.T) {
	links := make([]string, 40)
	for i := range links {
		links[i] = "http://h" + string(rune('a'+i%26)) + ".test/" + string(rune('A'+i/26))
	}
	slow := func(_ context.Context, url string) domain.Verdict {
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
		return domain.Clean()
	}

	for _, workers := range []int{1, 4, 16} {
		sink := &memorySink{}
		r := newTestRunner(t, Options{Evaluator: &funcEvaluator{fn: slow}, Sink: sink, Workers: workers})
		_, err := r.Run(context.Background(), []domain.LinkGroup{{Name: "g", Links: links}})
		require.NoError(t, err)
		require.Len(t, sink.rows, len(links))
		for i, rec := range sink.rows {
			assert.Equal(t, links[i], rec.URL, "workers=%d row=%d", workers, i)
		}
	}
}

func TestRun_WorkerLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	eval := &funcEvaluator{fn: func(context.Context, string) domain.Verdict {
		n := inflight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return domain.Clean()
	}}
	links := []string{"http://1.test/", "http://2.test/", "http://3.test/", "http://4.test/", "http://5.test/", "http://6.test/"}

	r := newTestRunner(t, Options{Evaluator: eval, Sink: &memorySink{}, Workers: 2})
	_, err := r.Run(context.Background(), []domain.LinkGroup{{Name: "g", Links: links}})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_CustomReview(t *testing.T) {
	sink := &memorySink{}
	r := newTestRunner(t, Options{Evaluator: &funcEvaluator{fn: byHost}, Sink: sink, Review: "Pending"})
	_, err := r.Run(context.Background(), []domain.LinkGroup{{Name: "g", Links: []string{"http://a.test/"}}})
	require.NoError(t, err)
	assert.Equal(t, "Pending", sink.rows[0].Review)
}

func TestRun_UsesRepository(t *testing.T) {
	repo := &MockRepository{}
	repo.On("Lookup", "http://cached.test/").Return(domain.ForbiddenDomain("ADS", "cached.test"), true)
	repo.On("Lookup", "http://fresh.test/").Return(domain.Verdict{}, false)
	repo.On("Record", "http://fresh.test/", domain.Clean()).Return(nil)

	eval := &funcEvaluator{fn: byHost}
	sink := &memorySink{}
	r := newTestRunner(t, Options{Evaluator: eval, Sink: sink, Repository: repo})

	sum, err := r.Run(context.Background(), []domain.LinkGroup{{Name: "g", Links: []string{"http://cached.test/", "http://fresh.test/"}}})
	require.NoError(t, err)

	assert.Equal(t, int32(1), eval.calls.Load())
	assert.Equal(t, "FORBIDDEN DOMAIN ADS cached.test", sink.rows[0].Reason)
	assert.Equal(t, Summary{Groups: 1, Links: 2, Valid: 1, Invalid: 1, Reused: 1}, sum)
	repo.AssertExpectations(t)
}

func TestRun_RecordFailureIsNotFatal(t *testing.T) {
	repo := &MockRepository{}
	repo.On("Lookup", mock.Anything).Return(domain.Verdict{}, false)
	repo.On("Record", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	sink := &memorySink{}
	r := newTestRunner(t, Options{Evaluator: &funcEvaluator{fn: byHost}, Sink: sink, Repository: repo})
	sum, err := r.Run(context.Background(), []domain.LinkGroup{{Name: "g", Links: []string{"http://a.test/"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Links)
}

func TestRun_SinkFailureStops(t *testing.T) {
	boom := errors.New("disk full")
	sink := &memorySink{failAt: 2, failErr: boom}
	r := newTestRunner(t, Options{Evaluator: &funcEvaluator{fn: byHost}, Sink: sink})

	sum, err := r.Run(context.Background(), []domain.LinkGroup{
		{Name: "a", Links: []string{"http://1.test/", "http://2.test/"}},
		{Name: "b", Links: []string{"http://3.test/"}},
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sum.Links)
	assert.Len(t, sink.rows, 1)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eval := &funcEvaluator{fn: func(ctx context.Context, url string) domain.Verdict {
		cancel()
		<-ctx.Done()
		return domain.UnknownMIME()
	}}
	sink := &memorySink{}
	r := newTestRunner(t, Options{Evaluator: eval, Sink: sink, Workers: 1})

	_, err := r.Run(ctx, []domain.LinkGroup{{Name: "g", Links: []string{"http://1.test/", "http://2.test/"}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.rows)
	assert.Equal(t, int32(1), eval.calls.Load())
}

func TestRun_DuplicateURLsShareEvaluation(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	var once sync.Once
	eval := &funcEvaluator{fn: func(context.Context, string) domain.Verdict {
		once.Do(started.Done)
		<-release
		return domain.Clean()
	}}
	sink := &memorySink{}
	r := newTestRunner(t, Options{Evaluator: eval, Sink: sink, Workers: 2})

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), []domain.LinkGroup{{Name: "g", Links: []string{"http://dup.test/", "http://dup.test/"}}})
		done <- err
	}()
	started.Wait()
	// give the second worker time to join the in-flight call
	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, <-done)

	assert.Len(t, sink.rows, 2)
	assert.Equal(t, int32(1), eval.calls.Load())
}

func TestRun_Empty(t *testing.T) {
	sink := &memorySink{}
	r := newTestRunner(t, Options{Evaluator: &funcEvaluator{fn: byHost}, Sink: sink})
	sum, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Empty(t, sink.rows)
}

func TestRun_ReportsProgressPerLink(t *testing.T) {
	type tick struct {
		group       string
		done, total int
	}
	var ticks []tick
	var active atomic.Int32
	progress := func(group string, done, total int) {
		if active.Add(1) > 1 {
			t.Errorf("progress called concurrently")
		}
		ticks = append(ticks, tick{group, done, total})
		active.Add(-1)
	}

	repo := new(MockRepository)
	repo.On("Lookup", "http://cached.test/").Return(domain.Clean(), true)
	repo.On("Lookup", mock.Anything).Return(domain.Verdict{}, false)
	repo.On("Record", mock.Anything, mock.Anything).Return(nil)

	r := newTestRunner(t, Options{
		Evaluator:  &funcEvaluator{fn: byHost},
		Sink:       &memorySink{},
		Repository: repo,
		Workers:    4,
		Progress:   progress,
	})
	groups := []domain.LinkGroup{
		{Name: "b", Links: []string{"http://b1.test/", "http://cached.test/", "http://bad.test/"}},
		{Name: "a", Links: []string{"http://a1.test/"}},
		{Name: "empty"},
	}
	_, err := r.Run(context.Background(), groups)
	require.NoError(t, err)

	want := []tick{{"a", 1, 1}, {"b", 1, 3}, {"b", 2, 3}, {"b", 3, 3}}
	assert.Equal(t, want, ticks, "one call per link, counting up within each group")
}
