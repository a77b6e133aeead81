package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultWorkers caps how many feeds or pages are fetched at once.
const DefaultWorkers = 10

// maxBodySize bounds a fetched feed or page.
const maxBodySize = 10 << 20

// Retry bounds how often a failed fetch is attempted. The wait before
// attempt n+1 is n*Delay.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetry makes three attempts, two and four seconds apart.
var DefaultRetry = Retry{Attempts: 3, Delay: 2 * time.Second}

// statusError is a non-200 response.
type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("status %d", e.code) }

// retryable reports whether another attempt could succeed. Transport
// errors, 429 and 5xx qualify; other statuses do not.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

// fetch GETs url and returns the body, retrying per policy.
func fetch(ctx context.Context, client *http.Client, policy Retry, url string) ([]byte, error) {
	attempts := max(policy.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var body []byte
		body, err = fetchOnce(ctx, client, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * policy.Delay):
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", attempts, err)
}

func fetchOnce(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "storyrank/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// collectAll runs fn for indexes 0..n-1 with at most workers in flight and
// concatenates the results in index order. A failed index contributes
// nothing; report sees its error unless ctx was cancelled.
func collectAll(ctx context.Context, n, workers int, fn func(context.Context, int) ([]Item, error), report func(int, []Item, error)) ([]Item, error) {
	var (
		results = make([][]Item, n)
		wg      sync.WaitGroup
		sem     = make(chan struct{}, max(workers, 1))
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			items, err := fn(ctx, i)
			if ctx.Err() != nil {
				return
			}
			report(i, items, err)
			if err == nil {
				results[i] = items
			}
		}(i)
	}
	wg.Wait()

	var all []Item
	for _, items := range results {
		all = append(all, items...)
	}
	if err := ctx.Err(); err != nil {
		return all, err
	}
	return all, nil
}
