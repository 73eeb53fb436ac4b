// Package cryptopanic derives a news sentiment score from CryptoPanic votes.
package cryptopanic

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

const (
	postsPath = "/api/v1/posts/"
	topPosts  = 3
)

// Client fetches the latest BTC posts. Without an API key it reports the
// neutral sentiment and never touches the network.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a CryptoPanic client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Sentiment scores the top three posts: positive/(positive+negative)*10
// rounded to two decimals, 5.0 when nobody voted.
func (c *Client) Sentiment(ctx context.Context) (domain.NewsSentiment, error) {
	if !c.Enabled() {
		return domain.NeutralSentiment(), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.NeutralSentiment(), err
	}

	params := url.Values{}
	params.Set("auth_token", c.apiKey)
	params.Set("currencies", "BTC")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+postsPath+"?"+params.Encode(), nil)
	if err != nil {
		return domain.NeutralSentiment(), fmt.Errorf("cryptopanic: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NeutralSentiment(), fmt.Errorf("cryptopanic: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NeutralSentiment(), fmt.Errorf("cryptopanic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NeutralSentiment(), fmt.Errorf("cryptopanic: HTTP %d: %s", resp.StatusCode, body)
	}
	if !gjson.ValidBytes(body) {
		return domain.NeutralSentiment(), fmt.Errorf("cryptopanic: invalid json response")
	}
	return scorePosts(gjson.GetBytes(body, "results")), nil
}

func scorePosts(results gjson.Result) domain.NewsSentiment {
	out := domain.NewsSentiment{SentimentScore: 5.0, Headlines: []string{}}
	var pos, neg float64
	for i, post := range results.Array() {
		if i == topPosts {
			break
		}
		out.Headlines = append(out.Headlines, post.Get("title").String())
		pos += post.Get("votes.positive").Float()
		neg += post.Get("votes.negative").Float()
	}
	if total := pos + neg; total > 0 {
		out.SentimentScore = math.Round(pos/total*10*100) / 100
	}
	return out
}
