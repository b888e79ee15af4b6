package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/pfrederiksen/bamf-monitor/internal/logger"
	"github.com/pfrederiksen/bamf-monitor/internal/metrics"
)

const (
	PageURL   = "https://www.bamf.de/DE/Themen/Integration/ZugewanderteTeilnehmende/Integrationskurse/Abschlusspruefung/abschlusspruefung-node.html"
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	Timeout   = 30 * time.Second

	// maxBodySize caps how much of a response is read.
	maxBodySize = 4 << 20
)

// DefaultHeaders is the browser-like header set sent with every request.
var DefaultHeaders = map[string]string{
	"User-Agent":      UserAgent,
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "de-DE,de;q=0.9,en;q=0.8",
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// ErrEmptyBody is returned when the server answers with no content.
var ErrEmptyBody = errors.New("empty response body")

// RetryPolicy bounds the fetch loop: at most MaxAttempts requests with a fixed
// Delay between them.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy is five attempts, five seconds apart.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Delay: 5 * time.Second}

// BackOff returns the constant backoff for the policy, bound to ctx.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// Scraper fetches the monitored page
type Scraper struct {
	client  *http.Client
	url     string
	headers map[string]string
	policy  RetryPolicy
	log     *logger.Logger
	metrics *metrics.Recorder
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithURL overrides the page URL.
func WithURL(url string) Option {
	return func(s *Scraper) { s.url = url }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) { s.client.Timeout = d }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Scraper) { s.policy = p }
}

// WithLogger sets the logger used for per-attempt messages.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scraper) { s.log = l }
}

// WithMetrics records attempts on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scraper) { s.metrics = m }
}

// New creates a new Scraper instance
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client: &http.Client{
			Timeout: Timeout,
		},
		url:     PageURL,
		headers: DefaultHeaders,
		policy:  DefaultRetryPolicy,
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retrieves the page, retrying transient failures per the retry policy.
// It returns the last attempt's error once the attempts are exhausted.
func (s *Scraper) Fetch(ctx context.Context) (string, error) {
	var (
		attempt int
		page    string
	)

	op := func() error {
		attempt++
		s.log.Info("Fetching page", logger.Fields{
			"attempt":      attempt,
			"max_attempts": s.policy.MaxAttempts,
			"url":          s.url,
		})

		start := time.Now()
		body, err := s.fetchOnce(ctx)
		s.metrics.FetchAttempt(err, time.Since(start))
		if err != nil {
			return err
		}
		page = body
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.log.Warn("Fetch attempt failed", logger.Fields{
			"attempt":  attempt,
			"retry_in": wait.String(),
			"error":    err.Error(),
		})
	}

	if err := backoff.RetryNotify(op, s.policy.BackOff(ctx), notify); err != nil {
		s.log.Error("All fetch attempts failed", logger.Fields{"attempts": attempt}, err)
		return "", fmt.Errorf("after %d attempts: %w", attempt, err)
	}

	return page, nil
}

// fetchOnce performs a single GET and validates the response
func (s *Scraper) fetchOnce(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting page: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	s.log.Debug("HTTP response", logger.Fields{"status": resp.StatusCode})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if len(body) == 0 {
		return "", ErrEmptyBody
	}

	if kind, _ := filetype.Match(body); kind != types.Unknown {
		return "", fmt.Errorf("unexpected %s content (%s)", kind.Extension, kind.MIME.Value)
	}

	return string(body), nil
}
