// Package oracle asks an Anthropic model to classify the current BTC
// 15-minute opportunity.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

const (
	messagesPath     = "/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Config holds the model settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
	// Threshold is quoted in the prompt; the engine applies the gate.
	Threshold float64
}

// Client is the decision oracle backed by the Anthropic messages API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an oracle client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With(slog.String("component", "oracle")),
	}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Decide sends the signals and odds to the model and parses its answer.
func (c *Client) Decide(ctx context.Context, signals domain.MarketSignals, odds domain.Odds) (domain.Decision, error) {
	prompt, err := buildPrompt(signals, odds, c.cfg.Threshold)
	if err != nil {
		return domain.Decision{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Decision{}, fmt.Errorf("oracle: %w", err)
	}

	text, err := c.complete(ctx, prompt)
	if err != nil {
		return domain.Decision{}, err
	}
	d, err := parseDecision(text)
	if err != nil {
		c.logger.WarnContext(ctx, "unusable model output", slog.String("error", err.Error()))
		return domain.Decision{}, err
	}
	c.logger.InfoContext(ctx, "oracle decision",
		slog.String("action", string(d.Action)),
		slog.Float64("confidence", d.Confidence),
	)
	return d, nil
}

// complete issues one messages call and returns the text of the first
// content block.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("oracle: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("oracle: %w: %s", domain.ErrRateLimited, errorMessage(respBody))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("oracle: %w: %s", domain.ErrUnauthorized, errorMessage(respBody))
	case resp.StatusCode >= 300:
		return "", fmt.Errorf("oracle: HTTP %d: %s", resp.StatusCode, errorMessage(respBody))
	}

	text := gjson.GetBytes(respBody, `content.#(type=="text").text`)
	if !text.Exists() {
		return "", fmt.Errorf("oracle: %w: no text content", domain.ErrMalformedDecision)
	}
	return text.String(), nil
}

func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	return string(body)
}
