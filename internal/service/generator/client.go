package generator

import (
	"context"
	"fmt"
	"time"

	"CrudeDesk/internal/domain/models"
	"CrudeDesk/internal/service/ratelimit"
	"CrudeDesk/pkg/config"
	xhttp "CrudeDesk/pkg/http"
)

// Upstream budget per artifact kind. Generation is already deduplicated, so
// anything past this is a retry storm or a misbehaving caller.
const (
	rateBurst     = 5
	rateRefillSec = 0.2
)

// Client talks to the external analysis service that produces raw artifact
// payloads. The service is slow (tens of seconds per request), so the caller
// decides the deadline; the client only retries transient failures.
type Client struct {
	baseURL string
	client  *xhttp.Client
	retries int
	limiter *ratelimit.Limiter
}

type request struct {
	Market     string `json:"market"`
	TradingDay string `json:"tradingDay"`
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Generator.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL: cfg.Generator.ServiceURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		retries: cfg.Generator.Retries,
		limiter: ratelimit.New(),
	}
}

// Generate requests a fresh raw payload for one (market, trading day, kind).
// The response body is returned untouched; validation happens downstream.
func (c *Client) Generate(ctx context.Context, market models.Market, tradingDay time.Time, kind models.Kind) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("generator client not initialized")
	}
	if !c.limiter.Allow(string(kind), rateBurst, rateRefillSec) {
		return nil, fmt.Errorf("generator rate limit exceeded for %s", kind)
	}

	body := request{
		Market:     string(market),
		TradingDay: tradingDay.Format("2006-01-02"),
	}

	var raw []byte
	var err error
	attempts := c.retries
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		raw = nil
		err = c.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    fmt.Sprintf("%s/analysis/%s", c.baseURL, kind),
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: body,
		}, &raw)
		if err == nil {
			return raw, nil
		}
		select {
		case <-time.After(time.Duration(i) * 500 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("generate %s %s %s: %w", market, body.TradingDay, kind, err)
}
