package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed colours per engine event.
var discordColours = map[string]int{
	EventSignalDetected: 0xF1C40F,
	EventTradeExecuted:  0x2ECC71,
	EventTradeFailed:    0xE74C3C,
}

const (
	discordDefaultColour = 0x5865F2
	discordUsername      = "btc-sniper"
	discordMaxDesc       = 4096
)

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordSender posts engine events to a Discord webhook as one colour-coded
// embed per message.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordSender creates a DiscordSender for webhookURL with a 10-second
// HTTP timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// Send posts an event-less message, such as the startup notice.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	return d.SendEvent(ctx, "", title, message)
}

// SendEvent posts message as an embed coloured by event. The event name is
// shown in the footer.
func (d *DiscordSender) SendEvent(ctx context.Context, event, title, message string) error {
	colour, ok := discordColours[event]
	if !ok {
		colour = discordDefaultColour
	}
	embed := discordEmbed{
		Title:       title,
		Description: truncateRunes(message, discordMaxDesc),
		Color:       colour,
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}
	if event != "" {
		embed.Footer = &discordFooter{Text: event}
	}

	body, err := json.Marshal(discordPayload{Username: discordUsername, Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send %s: %w", eventLabel(event), err)
	}
	defer resp.Body.Close()

	// 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: send %s: status %d: %s", eventLabel(event), resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func eventLabel(event string) string {
	if event == "" {
		return "message"
	}
	return event
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
