package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// Filters applied to market questions during discovery.
const (
	questionAsset     = "Bitcoin"
	questionTimeframe = "15-minute"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "gamma")),
	}
}

// ListActiveMarkets returns one page of open markets. Records that do not
// decode are skipped and logged; they never fail the page.
func (g *GammaClient) ListActiveMarkets(ctx context.Context, limit, offset int) ([]APIMarket, int, error) {
	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, 0, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	markets := make([]APIMarket, 0, len(raw))
	for i, r := range raw {
		var m APIMarket
		if err := json.Unmarshal(r, &m); err != nil {
			g.logger.DebugContext(ctx, "skipping malformed market",
				slog.Int("index", offset+i), slog.String("error", err.Error()))
			continue
		}
		markets = append(markets, m)
	}
	return markets, len(raw), nil
}

// FindBTC15mMarkets pages through open markets and keeps the active
// "Bitcoin ... 15-minute" markets with both outcome tokens.
func (g *GammaClient) FindBTC15mMarkets(ctx context.Context, pageSize, maxPages int) ([]domain.MarketInfo, error) {
	var out []domain.MarketInfo
	for page := 0; page < maxPages; page++ {
		markets, n, err := g.ListActiveMarkets(ctx, pageSize, page*pageSize)
		if err != nil {
			if page > 0 {
				g.logger.WarnContext(ctx, "market discovery stopped early",
					slog.Int("page", page), slog.String("error", err.Error()))
				break
			}
			return nil, err
		}
		for i := range markets {
			if info, ok := matchBTC15m(&markets[i]); ok {
				out = append(out, info)
			}
		}
		if n < pageSize {
			break
		}
	}
	return out, nil
}

func matchBTC15m(m *APIMarket) (domain.MarketInfo, bool) {
	if !strings.Contains(m.Question, questionAsset) || !strings.Contains(m.Question, questionTimeframe) {
		return domain.MarketInfo{}, false
	}
	if !bool(m.Active) || bool(m.Closed) {
		return domain.MarketInfo{}, false
	}
	return m.ToMarketInfo()
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
