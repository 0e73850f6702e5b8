package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bnema/elemhide/internal/models"
)

// DefaultUserAgent identifies requests for filter lists and pages
const DefaultUserAgent = "elemhide/1.0"

// maxBodySize bounds what is read from a single response
const maxBodySize = 32 << 20

// ErrTooLarge is returned for responses bigger than the body limit
var ErrTooLarge = errors.New("response body too large")

// StatusError reports a response with a status other than 200
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// retryable reports whether the request may succeed when sent again
func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Fetcher downloads filter lists and pages
type Fetcher struct {
	client    *http.Client
	retries   int
	userAgent string
}

// New creates a new fetcher from config
func New(cfg models.HTTPConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		retries:   retries,
		userAgent: DefaultUserAgent,
	}
}

// Fetch downloads content from a URL with retries. Client errors (4xx other
// than 429) are not retried.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i < f.retries; i++ {
		if i > 0 {
			// Linear backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		data, err := f.doFetch(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var status *StatusError
		if errors.As(err, &status) && !status.retryable() {
			return nil, err
		}
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", f.retries, lastErr)
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("%s: %w", url, ErrTooLarge)
	}
	return data, nil
}
