package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

const systemPrompt = "You are a high-frequency trading bot brain specializing in BTC/Polymarket arbitrage. You must respond ONLY in a valid JSON object."

const promptTemplate = `
Analyze the provided BTC market data. Your goal is to identify if the 15-minute BTC direction is mispriced.

Market Signals:
%s

Polymarket Current Odds:
%s

Instructions:
1. Identify the current 15m BTC Trend (Bullish/Bearish/Neutral).
2. Analyze Binance Order Book Walls for immediate support/resistance.
3. Factor in Funding Rates and Liquidation clusters.
4. If Binance walls and funding suggest a drop, but 'DOWN' shares are still < $0.52, recommend 'BUY_DOWN'.
5. Conversely, if indicators suggest a pump and 'UP' shares are cheap, recommend 'BUY_UP'.

Output strictly in JSON: 
{
  "action": "BUY_UP" | "BUY_DOWN" | "WAIT", 
  "confidence": float, 
  "reasoning": "A detailed breakdown including: 1) Trend Analysis, 2) Order Book Wall status, 3) Liquidation/Funding context."
}
Only recommend a trade if confidence is > %s.
`

// buildPrompt renders the user message for one decision.
func buildPrompt(signals domain.MarketSignals, odds domain.Odds, threshold float64) (string, error) {
	sig, err := json.MarshalIndent(signals, "", "  ")
	if err != nil {
		return "", fmt.Errorf("oracle: encode signals: %w", err)
	}
	o, err := json.MarshalIndent(odds, "", "  ")
	if err != nil {
		return "", fmt.Errorf("oracle: encode odds: %w", err)
	}
	th := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", threshold), "0"), ".")
	return strings.TrimSpace(fmt.Sprintf(promptTemplate, sig, o, th)), nil
}
