package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// FundingClient reads the perpetual funding rate from the futures premium
// index. The endpoint is public; keys are optional.
type FundingClient struct {
	client *futures.Client
	symbol string
}

// NewFundingClient creates a funding client for symbol (e.g. "BTCUSDT").
// An empty baseURL keeps the SDK default.
func NewFundingClient(apiKey, apiSecret, baseURL, symbol string) *FundingClient {
	client := futures.NewClient(apiKey, apiSecret)
	if strings.TrimSpace(baseURL) != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	client.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	return &FundingClient{client: client, symbol: strings.ToUpper(symbol)}
}

// Funding returns the last funding rate. There is no hourly history on the
// premium index, so the 1h average mirrors the current rate.
func (f *FundingClient) Funding(ctx context.Context) (*domain.FundingInfo, error) {
	res, err := f.client.NewPremiumIndexService().Symbol(f.symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance/funding: premium index: %w", err)
	}
	for _, entry := range res {
		if entry == nil || !strings.EqualFold(entry.Symbol, f.symbol) {
			continue
		}
		rate, err := strconv.ParseFloat(entry.LastFundingRate, 64)
		if err != nil {
			return nil, fmt.Errorf("binance/funding: parse rate %q: %w", entry.LastFundingRate, err)
		}
		return &domain.FundingInfo{CurrentFundingRate: rate, FundingRate1hAvg: rate}, nil
	}
	return nil, fmt.Errorf("binance/funding: %w: %s", domain.ErrNotFound, f.symbol)
}
