package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fanreel/api/internal/config"
)

// InputError marks a source clip as unavailable. It is permanent:
// the retry budget for the reference has been spent, or the failure
// was never retryable (4xx, empty payload).
type InputError struct {
	URL string
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input unavailable: %s: %v", e.URL, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Fetcher retrieves remote clips into job-scoped scratch storage.
// Downloads run in parallel bounded by a shared semaphore, so the
// cap holds across concurrent jobs as well as within one.
type Fetcher struct {
	client         *http.Client
	sem            chan struct{}
	attemptTimeout time.Duration
	maxRetries     int
}

// NewFetcher creates a fetcher bounded by the fetch configuration.
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	timeout := time.Duration(cfg.AttemptTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:         &http.Client{},
		sem:            make(chan struct{}, concurrency),
		attemptTimeout: timeout,
		maxRetries:     cfg.MaxRetries,
	}
}

// FetchAll downloads every clip into destDir, preserving submission
// order in the returned paths. The first failure cancels the
// remaining downloads and fails the whole batch: clip completeness
// is part of the user's selection contract.
func (f *Fetcher) FetchAll(ctx context.Context, destDir string, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no input clips")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths := make([]string, len(urls))
	errs := make([]error, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()

			select {
			case f.sem <- struct{}{}:
				defer func() { <-f.sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}

			dest := filepath.Join(destDir, fmt.Sprintf("clip_%03d.mp4", i))
			if err := f.fetchOne(ctx, url, dest); err != nil {
				errs[i] = err
				cancel()
				return
			}
			paths[i] = dest
		}(i, url)
	}
	wg.Wait()

	// Report the input error, not the cancellation it triggered.
	for _, err := range errs {
		var inputErr *InputError
		if errors.As(err, &inputErr) {
			return nil, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// fetchOne downloads a single clip with bounded retries and backoff.
// Only transient failures (network errors, 5xx) are retried.
func (f *Fetcher) fetchOne(ctx context.Context, url, dest string) error {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := f.attempt(ctx, url, dest)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var inputErr *InputError
		if errors.As(err, &inputErr) {
			return err
		}
		lastErr = err
	}
	return &InputError{URL: url, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url, dest string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return &InputError{URL: url, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return &InputError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer file.Close()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if n == 0 {
		os.Remove(dest)
		return &InputError{URL: url, Err: fmt.Errorf("empty response body")}
	}
	return nil
}
