// Package upstream wraps outbound calls to currency and payment providers
// with a per-call timeout, a circuit breaker, tracing and latency metrics.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/metrics"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Metrics         *metrics.Metrics
	// Transport defaults to http.DefaultTransport; it is always wrapped by otelhttp.
	Transport http.RoundTripper
}

type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is returned for 5xx answers; they count against the breaker.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

type Client struct {
	provider string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[*Response]
	timeout  time.Duration
	metrics  *metrics.Metrics
}

func New(provider string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	failures := opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})

	return &Client{
		provider: provider,
		http:     &http.Client{Transport: otelhttp.NewTransport(base)},
		cb:       cb,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
	}
}

func (c *Client) Provider() string { return c.provider }

// Do sends req under the client's timeout and breaker. Non-2xx answers below
// 500 are returned as a Response for the caller to interpret. Transport
// failures, 5xx answers and an open breaker become apperr Gateway errors.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.cb.Execute(func() (*Response, error) {
		return c.send(req.WithContext(ctx))
	})
	c.metrics.ObserveUpstream(c.provider, start, err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperr.Gateway(c.provider, errors.Join(apperr.ErrCircuitOpen, err))
		}
		return nil, apperr.Gateway(c.provider, err)
	}
	return resp, nil
}

func (c *Client) send(req *http.Request) (*Response, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 500 {
		return nil, &StatusError{Status: res.StatusCode, Body: string(body)}
	}
	return &Response{Status: res.StatusCode, Body: body}, nil
}
