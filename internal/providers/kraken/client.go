// Package kraken implements the Provider contract over Kraken's public REST
// API, with an optional gorilla/websocket order-book stream.
package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sawpanic/marketintel/internal/circuit"
	"github.com/sawpanic/marketintel/internal/ratelimit"
)

// Config parameterizes the REST client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	UserAgent      string
}

// DefaultConfig returns Kraken's public production endpoint with
// conservative timeouts.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.kraken.com",
		RequestTimeout: 10 * time.Second,
		UserAgent:      "marketintel/1.0",
	}
}

// client is the low-level HTTP transport used by Provider; Stream in
// stream.go dials its own WebSocket connection and does not use it.
// Rate limiting and circuit breaking are supplied by the caller (Provider)
// rather than owned here, so every provider in the registry is governed by
// the same scheduler/breaker instances.
type client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.Scheduler
	breaker    *circuit.Manager
	name       string
}

func newClient(cfg Config, limiter *ratelimit.Scheduler, breaker *circuit.Manager, name string) *client {
	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    limiter,
		breaker:    breaker,
		name:       name,
	}
}

// get performs a rate-limited, circuit-guarded GET against a public Kraken
// REST endpoint and unmarshals the envelope's result field into out.
func (c *client) get(ctx context.Context, path string, query string, out interface{}) error {
	if err := c.limiter.Wait(ctx, c.name); err != nil {
		return fmt.Errorf("kraken: rate limit wait: %w", err)
	}

	return c.breaker.Call(ctx, c.name, func(ctx context.Context) error {
		url := c.cfg.BaseURL + path
		if query != "" {
			url += "?" + query
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("kraken: build request: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("kraken: request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("kraken: rate limited (429)")
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("kraken: unexpected status %d: %s", resp.StatusCode, string(body))
		}

		var envelope apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("kraken: decode envelope: %w", err)
		}
		if len(envelope.Error) > 0 {
			return fmt.Errorf("kraken: api error: %s", strings.Join(envelope.Error, "; "))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("kraken: decode result: %w", err)
		}
		return nil
	})
}

// toWirePair converts a canonical "BASE-QUOTE" symbol to Kraken's REST pair
// naming (no separator, e.g. "XBTUSD"), translating the handful of asset
// codes Kraken renames.
func toWirePair(base, quote string) string {
	return normalizeAsset(base) + normalizeAsset(quote)
}

func normalizeAsset(asset string) string {
	switch strings.ToUpper(asset) {
	case "BTC":
		return "XBT"
	default:
		return strings.ToUpper(asset)
	}
}

// fromWireAsset reverses Kraken's asset renaming, e.g. "XXBT" -> "BTC",
// "ZUSD" -> "USD".
func fromWireAsset(asset string) string {
	a := strings.ToUpper(asset)
	switch a {
	case "XXBT":
		return "BTC"
	case "XBT":
		return "BTC"
	case "ZUSD":
		return "USD"
	case "ZEUR":
		return "EUR"
	case "ZGBP":
		return "GBP"
	}
	if strings.HasPrefix(a, "X") || strings.HasPrefix(a, "Z") {
		return a[1:]
	}
	return a
}
