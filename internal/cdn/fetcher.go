package cdn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/haytac/emoji-cdn/internal/metrics"
)

// ErrUpstreamUnavailable is returned while the circuit breaker is open.
var ErrUpstreamUnavailable = errors.New("cdn upstream unavailable")

// StatusError reports a 5xx answer from the CDN.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cdn %s returned status %d", e.URL, e.Code)
}

// Fetcher retrieves images from the CDN on behalf of clients. A circuit breaker
// trips after repeated transport errors or 5xx answers so that a dead CDN is
// reported immediately instead of tying up request goroutines.
type Fetcher struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewFetcher wraps client with a circuit breaker.
func NewFetcher(client *http.Client) *Fetcher {
	settings := gobreaker.Settings{
		Name:        "emoji-cdn-upstream",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A client hanging up says nothing about the CDN.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	}
	return &Fetcher{client: client, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Fetch issues a GET for url. Any non-5xx response is returned as is and the
// caller must close its body. 5xx answers come back as *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*http.Response, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build cdn request for %s: %w", url, err)
		}
		req.Header.Set("User-Agent", "emoji-cdn/1.0")
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, &StatusError{URL: url, Code: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamFetches.WithLabelValues("breaker_open").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		if errors.Is(err, context.Canceled) {
			metrics.UpstreamFetches.WithLabelValues("canceled").Inc()
			return nil, err
		}
		metrics.UpstreamFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	resp := result.(*http.Response)
	metrics.UpstreamFetches.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}
