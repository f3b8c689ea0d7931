// Package httpfetch implements the retrying JSON GET client and per-provider
// circuit breaker described in SPEC_FULL.md §4 (C3), grounded on
// common/libraries/go/iaros-core/client.go's HTTPClient (gobreaker wiring,
// retry-with-backoff loop) and services/pricing_service's per-service
// gobreaker.CircuitBreaker map, with the exact retry/backoff/breaker numbers
// of the original Python http_client.py (tenacity AsyncRetrying + the
// CircuitBreaker dataclass).
package httpfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"veritariff/tariffengine/internal/logging"
	"veritariff/tariffengine/internal/metrics"
)

const (
	maxAttempts       = 3
	backoffMultiplier = 500 * time.Millisecond
	backoffMin        = 500 * time.Millisecond
	backoffMax        = 4 * time.Second
	callTimeout       = 10 * time.Second
	breakerThreshold  = 3
	breakerResetAfter = 30 * time.Second
)

// Fetcher performs retrying JSON GETs behind a named circuit breaker per
// upstream provider, so one provider's outage doesn't trip another's.
type Fetcher struct {
	client   *http.Client
	log      *logging.Logger
	metrics  *metrics.EngineMetrics
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a Fetcher. log may be nil, in which case the global logger is
// used; m may be nil, in which case breaker-trip observations are skipped.
func New(log *logging.Logger, m *metrics.EngineMetrics) *Fetcher {
	if log == nil {
		log = logging.Global()
	}
	return &Fetcher{
		client:   &http.Client{Timeout: callTimeout},
		log:      log,
		metrics:  m,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (f *Fetcher) breaker(name string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     breakerResetAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log.CircuitBreakerLogger(name, from.String(), to.String())
			if to == gobreaker.StateOpen && f.metrics != nil {
				f.metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
	})
	f.breakers[name] = cb
	return cb
}

// Allow reports whether provider's breaker currently permits a call, without
// performing one. Providers use this before deciding whether to attempt the
// remote tier at all (spec.md §4.4's "if breaker open, skip straight to
// fallback" behavior).
func (f *Fetcher) Allow(provider string) bool {
	return f.breaker(provider).State() != gobreaker.StateOpen
}

// GetJSON performs a GET against rawURL with the given headers and query
// params, retrying transient failures with exponential backoff, gated by
// provider's circuit breaker. The response body is unmarshalled into out.
func (f *Fetcher) GetJSON(ctx context.Context, provider, rawURL string, headers map[string]string, params map[string]string, out interface{}) error {
	cb := f.breaker(provider)

	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("httpfetch: parse url: %w", err)
	}
	if len(params) > 0 {
		q := reqURL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		reqURL.RawQuery = q.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		body, err := f.doOnce(callCtx, cb, reqURL.String(), headers)
		cancel()
		if err == nil {
			return json.Unmarshal(body, out)
		}
		lastErr = err
		f.log.ExternalServiceLogger(provider, http.MethodGet, reqURL.String(), 0, 0, false)
		if attempt == maxAttempts-1 {
			break
		}
		wait := backoffMultiplier * time.Duration(1<<attempt)
		if wait < backoffMin {
			wait = backoffMin
		}
		if wait > backoffMax {
			wait = backoffMax
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("httpfetch: %s failed after %d attempts: %w", provider, maxAttempts, lastErr)
}

func (f *Fetcher) doOnce(ctx context.Context, cb *gobreaker.CircuitBreaker, reqURL string, headers map[string]string) ([]byte, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("httpfetch: http status %d", resp.StatusCode)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
