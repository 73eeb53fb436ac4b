// Package coinglass reads BTC liquidation volumes from the Coinglass open API.
package coinglass

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

const liquidationPath = "/public/v2/liquidation_info"

// Client fetches hourly liquidation totals. Without an API key it reports
// zero volumes and never touches the network.
type Client struct {
	baseURL    string
	apiKey     string
	symbol     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Coinglass client for symbol (e.g. "BTC").
func NewClient(baseURL, apiKey, symbol string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		symbol:     symbol,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Liquidations returns short and long liquidated USD over the last hour.
// A response whose code is not "0" or that carries no data is an error.
func (c *Client) Liquidations(ctx context.Context) (domain.LiquidationData, error) {
	if !c.Enabled() {
		return domain.LiquidationData{}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.LiquidationData{}, err
	}

	params := url.Values{}
	params.Set("symbol", c.symbol)
	params.Set("time_type", "h1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+liquidationPath+"?"+params.Encode(), nil)
	if err != nil {
		return domain.LiquidationData{}, fmt.Errorf("coinglass: create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("coinglassApi", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.LiquidationData{}, fmt.Errorf("coinglass: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.LiquidationData{}, fmt.Errorf("coinglass: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.LiquidationData{}, fmt.Errorf("coinglass: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.LiquidationData{}, fmt.Errorf("coinglass: HTTP %d: %s", resp.StatusCode, body)
	}

	if !gjson.ValidBytes(body) {
		return domain.LiquidationData{}, fmt.Errorf("coinglass: invalid json response")
	}
	doc := gjson.ParseBytes(body)
	if code := doc.Get("code").String(); code != "0" {
		return domain.LiquidationData{}, fmt.Errorf("coinglass: api code %q: %s", code, doc.Get("msg").String())
	}
	first := doc.Get("data.0")
	if !first.Exists() {
		return domain.LiquidationData{}, fmt.Errorf("coinglass: %w: empty data", domain.ErrNotFound)
	}
	return domain.LiquidationData{
		ShortVol: first.Get("shortVolUsd").Float(),
		LongVol:  first.Get("longVolUsd").Float(),
	}, nil
}
