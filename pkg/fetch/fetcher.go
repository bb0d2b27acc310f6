// Package fetch downloads remote artifacts with bounded retries and
// validates archives before they are handed to an install step.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = 2 * time.Second
)

// Fetcher downloads URLs to local paths. It is policy-free: it reports
// failure after its retry budget is exhausted and leaves the fatal vs.
// soft-skip decision to the calling step.
type Fetcher struct {
	client      *http.Client
	maxAttempts int
	baseBackoff time.Duration
	metrics     *telemetry.Metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithMaxAttempts sets the total number of download attempts.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		f.maxAttempts = n
	}
}

// WithBaseBackoff sets the backoff unit: attempt n sleeps n*base.
func WithBaseBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseBackoff = d
	}
}

// WithMetrics attaches a metrics collector for attempt/failure counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// New creates a Fetcher with defaults of 3 attempts and a 2s backoff unit.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: 10 * time.Minute},
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// linearBackOff sleeps attempt*base between tries.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// Fetch downloads url into dest. On success dest holds exactly the
// fetched bytes; on failure no file is left at dest. The download goes
// through a temp file in dest's directory and is renamed into place.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	logger := telemetry.FromContext(ctx).WithField("url", rawURL)
	host := hostOf(rawURL)

	op := func() (struct{}, error) {
		if f.metrics != nil {
			f.metrics.RecordFetchAttempt(host)
		}
		if err := f.download(ctx, rawURL, dest); err != nil {
			logger.WithError(err).Warn("download attempt failed")
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&linearBackOff{base: f.baseBackoff}),
		backoff.WithMaxTries(uint(f.maxAttempts)),
	)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordFetchFailure(host)
		}
		return fmt.Errorf("failed to fetch %s after %d attempts: %w", rawURL, f.maxAttempts, err)
	}

	logger.Debug("download complete")
	return nil
}

// download performs one attempt.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("invalid request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".partial-*")
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create temp file: %w", err))
	}

	_, err = io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return backoff.Permanent(fmt.Errorf("failed to place %s: %w", dest, err))
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
