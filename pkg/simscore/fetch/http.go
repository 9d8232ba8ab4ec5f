package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
)

// HTTPOptions configures an HTTPFetcher
type HTTPOptions struct {
	Client   *http.Client
	Attempts int           // default 3
	Backoff  time.Duration // linear step between attempts, default 200ms
	MaxBytes int64         // 0 = unlimited
	Log      *slog.Logger
}

// HTTPFetcher downloads documents over HTTP(S), retrying transient failures.
type HTTPFetcher struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
	maxBytes int64
	log      *slog.Logger
}

// NewHTTP creates an HTTP fetcher.
func NewHTTP(opts HTTPOptions) *HTTPFetcher {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = discardLogger()
	}
	return &HTTPFetcher{
		client:   opts.Client,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		maxBytes: opts.MaxBytes,
		log:      opts.Log,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	var lastErr error
	for i := 0; i < f.attempts; i++ {
		if i > 0 {
			wait := time.Duration(i) * f.backoff
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch %s: %w", locator, errors.Join(internalerr.ErrTransient, ctx.Err()))
			case <-time.After(wait):
			}
		}

		data, retry, err := f.once(ctx, locator)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		f.log.Warn("document fetch failed", "locator", locator, "attempt", i+1, "error", err)
	}
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", locator, f.attempts, errors.Join(internalerr.ErrTransient, lastErr))
}

// once performs a single request and reports whether a failure is retryable.
func (f *HTTPFetcher) once(ctx context.Context, locator string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request %s: %w", locator, internalerr.ErrInvalidInput)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, false, fmt.Errorf("fetch %s: status %d: %w", locator, resp.StatusCode, internalerr.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("status code %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("fetch %s: unexpected status %d", locator, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, true, err
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, false, fmt.Errorf("fetch %s: document exceeds %d bytes: %w", locator, f.maxBytes, internalerr.ErrInvalidInput)
	}
	return data, false, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
