package probe

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/haukened/linkvet/internal/vet/common/log"
	"github.com/haukened/linkvet/internal/vet/common/utils"
)

const (
	defaultTimeout         = 5 * time.Second
	defaultHostConcurrency = 2
	defaultMaxBodyBytes    = 5 << 20
	defaultUserAgent       = "linkvet"
)

// Probe fetches content types and page text over HTTP. Failures are logged
// at debug level and reported as an absent type or empty text.
type Probe struct {
	client          *http.Client
	timeout         time.Duration
	hostConcurrency int64
	maxBodyBytes    int64
	userAgent       string
	ratePerHost     float64
	logger          log.Logger

	mu     sync.Mutex
	limits map[string]*hostLimit // keyed by apex domain
}

// hostLimit throttles the requests sent to one registrable domain.
type hostLimit struct {
	slots *semaphore.Weighted
	rate  *rate.Limiter // nil when unlimited
}

// Options configures a Probe.
type Options struct {
	Timeout         time.Duration
	HostConcurrency int
	MaxBodyBytes    int64
	UserAgent       string
	// RatePerHost caps requests per second to one registrable domain;
	// 0 disables the cap.
	RatePerHost float64
	// options to inject for testing purposes
	Client *http.Client
	Logger log.Logger
}

// New creates a Probe, filling unset options with defaults.
func New(opts Options) *Probe {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HostConcurrency <= 0 {
		opts.HostConcurrency = defaultHostConcurrency
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Probe{
		client:          opts.Client,
		timeout:         opts.Timeout,
		hostConcurrency: int64(opts.HostConcurrency),
		maxBodyBytes:    opts.MaxBodyBytes,
		userAgent:       opts.UserAgent,
		ratePerHost:     opts.RatePerHost,
		logger:          opts.Logger,
		limits:          make(map[string]*hostLimit),
	}
}

// FetchMIMEType issues a HEAD request and returns the media type of the
// response, lowercased and without parameters. Redirects are followed.
func (p *Probe) FetchMIMEType(ctx context.Context, rawURL string) (string, bool) {
	resp, release, err := p.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		p.logger.Debug(map[string]any{"url": rawURL, "error": err.Error()}, "content type probe failed")
		return "", false
	}
	defer release()
	resp.Body.Close()

	mt := MediaType(resp.Header.Get("Content-Type"))
	if mt == "" {
		p.logger.Debug(map[string]any{"url": rawURL, "status": resp.StatusCode}, "no content type")
		return "", false
	}
	return mt, true
}

// FetchText downloads the page and returns its visible text. Only a 200
// response is read; anything else yields "".
func (p *Probe) FetchText(ctx context.Context, rawURL string) string {
	resp, release, err := p.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		p.logger.Debug(map[string]any{"url": rawURL, "error": err.Error()}, "text fetch failed")
		return ""
	}
	defer release()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Debug(map[string]any{"url": rawURL, "status": resp.StatusCode}, "text fetch returned non-200 status")
		return ""
	}

	body := io.LimitReader(resp.Body, p.maxBodyBytes)
	r, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		p.logger.Debug(map[string]any{"url": rawURL, "error": err.Error()}, "unsupported charset")
		return ""
	}
	text, err := ExtractText(r)
	if err != nil {
		p.logger.Debug(map[string]any{"url": rawURL, "error": err.Error()}, "html parse failed")
		return ""
	}
	return text
}

// do performs one request under the per-domain limits. Waiting for a slot
// or a rate token is bounded only by ctx; the fetch timeout starts once the
// slot is held. The returned release func must be called once the response
// body is no longer needed.
func (p *Probe) do(ctx context.Context, method, rawURL string) (*http.Response, func(), error) {
	limit := p.limiter(rawURL)
	if err := limit.slots.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("waiting for host slot: %w", err)
	}
	if limit.rate != nil {
		if err := limit.rate.Wait(ctx); err != nil {
			limit.slots.Release(1)
			return nil, nil, fmt.Errorf("waiting for host rate: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	release := func() {
		cancel()
		limit.slots.Release(1)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		release()
		return nil, nil, err
	}
	return resp, release, nil
}

// limiter returns the limits shared by every URL of the same apex domain.
func (p *Probe) limiter(rawURL string) *hostLimit {
	key := utils.ApexDomain(utils.HostOf(rawURL))

	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limits[key]
	if !ok {
		l = &hostLimit{slots: semaphore.NewWeighted(p.hostConcurrency)}
		if p.ratePerHost > 0 {
			burst := max(1, int(p.ratePerHost))
			l.rate = rate.NewLimiter(rate.Limit(p.ratePerHost), burst)
		}
		p.limits[key] = l
	}
	return l
}

// MediaType returns the lowercased media type of a Content-Type header value.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	// tolerate malformed parameters
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// ExtractText parses an HTML document and returns its text with the
// content of script, style, noscript and template elements removed.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template").Remove()
	return doc.Text(), nil
}
