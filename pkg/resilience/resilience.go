// Package resilience wraps outbound HTTP calls with retry and a circuit breaker.
// The email sender and the storage client use it so a flaky provider does not
// stall request handlers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// Retry
// =============================================================================

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries           int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	Multiplier           float64
	Jitter               float64 // fraction of the backoff, 0.0 to 1.0
	RetryableStatusCodes []int
}

// DefaultRetryConfig returns the defaults used by outbound clients
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Backoff returns the wait before the given retry attempt (1-based)
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	backoff := float64(c.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if c.MaxBackoff > 0 && backoff > float64(c.MaxBackoff) {
		backoff = float64(c.MaxBackoff)
	}
	if c.Jitter > 0 {
		backoff += backoff * c.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(backoff)
}

func (c RetryConfig) retryableStatus(code int) bool {
	for _, s := range c.RetryableStatusCodes {
		if s == code {
			return true
		}
	}
	return false
}

// permanent marks an error that must not be retried
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent wraps err so Retry returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, the context
// ends, or the retry budget is spent.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Backoff(attempt)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var p *permanent
		if errors.As(lastErr, &p) {
			return p.err
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}
	return lastErr
}

// =============================================================================
// Circuit Breaker
// =============================================================================

// State is the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a Breaker
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	OnStateChange    func(from, to State)
}

// DefaultBreakerConfig returns the defaults used by outbound clients
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker opens after repeated failures and probes again after OpenTimeout
type Breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	state     State
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

// NewBreaker creates a closed breaker
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow returns ErrCircuitOpen when calls should be rejected
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
	}
	return nil
}

// Success records a successful call
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

// Failure records a failed call
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if b.cfg.OnStateChange != nil && from != to {
		go b.cfg.OnStateChange(from, to)
	}
}

// =============================================================================
// Transport
// =============================================================================

// StatusError is returned when retries end on a retryable status code
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Transport is an http.RoundTripper that retries idempotent failures and
// trips a breaker when the upstream keeps failing.
type Transport struct {
	Base    http.RoundTripper
	Retry   RetryConfig
	Breaker *Breaker
}

// NewClient returns an http.Client backed by a resilient Transport
func NewClient(timeout time.Duration, retry RetryConfig, breaker BreakerConfig) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &Transport{
			Base: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			Retry:   retry,
			Breaker: NewBreaker(breaker),
		},
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker != nil {
		if err := t.Breaker.Allow(); err != nil {
			return nil, err
		}
	}

	var resp *http.Response
	err := Retry(req.Context(), t.Retry, func(ctx context.Context) error {
		attempt, err := rewind(req)
		if err != nil {
			return Permanent(err)
		}
		r, err := base.RoundTrip(attempt)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return Permanent(err)
		}
		if t.Retry.retryableStatus(r.StatusCode) {
			r.Body.Close()
			return &StatusError{StatusCode: r.StatusCode}
		}
		resp = r
		return nil
	})

	if t.Breaker != nil {
		if err != nil {
			t.Breaker.Failure()
		} else {
			t.Breaker.Success()
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// rewind returns a request whose body can be read again
func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
