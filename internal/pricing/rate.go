package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/upstream"
)

// RateSource yields the number of quote-currency units per base-currency unit.
type RateSource interface {
	Rate(ctx context.Context) (float64, error)
}

type RateClient struct {
	url   string
	quote string
	up    *upstream.Client
	sfg   singleflight.Group
}

func NewRateClient(url, quote string, up *upstream.Client) *RateClient {
	return &RateClient{url: url, quote: quote, up: up}
}

type rateResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// Rate fetches the current rate. Concurrent callers share one request, which
// runs detached from any single caller's cancellation and is bounded by the
// upstream timeout. A caller whose ctx ends stops waiting on its own.
func (c *RateClient) Rate(ctx context.Context) (float64, error) {
	ctx, span := otel.Tracer("storefront/pricing").Start(ctx, "pricing.rate")
	defer span.End()
	span.SetAttributes(attribute.String("rate.quote", c.quote))

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.sfg.DoChan(c.quote, func() (any, error) {
		return c.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return 0, ctx.Err()
	case r := <-ch:
		span.SetAttributes(attribute.Bool("rate.shared", r.Shared))
		if r.Err != nil {
			span.RecordError(r.Err)
			return 0, r.Err
		}
		return r.Val.(float64), nil
	}
}

func (c *RateClient) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build rate request: %w", err)
	}
	resp, err := c.up.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	if !resp.OK() {
		return 0, apperr.GatewayRejected(c.up.Provider(), resp.Status, fmt.Sprintf("unexpected status %d", resp.Status))
	}

	var body rateResponse
	if err := resp.Decode(&body); err != nil {
		return 0, apperr.Gateway(c.up.Provider(), err)
	}
	rate, ok := body.Rates[c.quote]
	if !ok {
		return 0, apperr.Gateway(c.up.Provider(), fmt.Errorf("rate for %s missing", c.quote))
	}
	if rate <= 0 {
		return 0, apperr.Gateway(c.up.Provider(), errors.New("non-positive rate"))
	}
	return rate, nil
}
