package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// sideFor maps a buy action to the outcome token and its quoted price.
func sideFor(action domain.Action, market domain.MarketInfo, odds domain.Odds) (string, float64) {
	if action == domain.ActionBuyDown {
		return market.NoToken, odds.NoPrice
	}
	return market.YesToken, odds.YesPrice
}

func (e *Engine) buildBrief(market domain.MarketInfo, d domain.Decision, signals domain.MarketSignals, odds domain.Odds) domain.TradeBrief {
	token, quoted := sideFor(d.Action, market, odds)
	limit := domain.LimitPrice(quoted, e.cfg.Slippage)
	return domain.TradeBrief{
		ID:             uuid.NewString(),
		Action:         d.Action,
		Confidence:     d.Confidence,
		Reasoning:      d.Reasoning,
		TokenID:        token,
		MarketQuestion: market.Question,
		QuotedPrice:    quoted,
		LimitPrice:     limit,
		Fee:            domain.DynamicFee(limit),
		Amount:         e.cfg.TradeAmount,
		Odds:           odds,
		Signals:        signals,
		CreatedAt:      e.now(),
	}
}

// RenderBrief formats the operator report printed before confirmation.
func RenderBrief(b domain.TradeBrief) string {
	est := domain.EstimateTrade(b.Amount, b.LimitPrice)
	var sb strings.Builder
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(&sb, rule)
	fmt.Fprintf(&sb, "TRADE BRIEF %s  (%s)\n", b.ID, b.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintln(&sb, rule)
	fmt.Fprintf(&sb, "Market:      %s\n", b.MarketQuestion)
	fmt.Fprintf(&sb, "Action:      %s\n", b.Action)
	fmt.Fprintf(&sb, "Confidence:  %.2f\n", b.Confidence)
	fmt.Fprintf(&sb, "BTC price:   $%.2f\n", b.Signals.BTCPrice)
	fmt.Fprintf(&sb, "Odds:        YES %.3f / NO %.3f\n", b.Odds.YesPrice, b.Odds.NoPrice)
	fmt.Fprintf(&sb, "Limit:       $%.3f (quoted %.3f)\n", b.LimitPrice, b.QuotedPrice)
	fmt.Fprintf(&sb, "Fee:         %.4f\n", b.Fee)
	fmt.Fprintf(&sb, "Amount:      %.2f USDC, cost %.4f, payout %.4f\n", b.Amount, est.TotalCost, est.Payout)
	fmt.Fprintf(&sb, "Token:       %s\n", b.TokenID)
	fmt.Fprintf(&sb, "Reasoning:   %s\n", b.Reasoning)
	if !est.Profitable {
		fmt.Fprintln(&sb, "WARNING: potential payout does not exceed total cost")
	}
	fmt.Fprintln(&sb, rule)
	fmt.Fprintln(&sb, "Type CONTINUE to execute or anything else to skip (or POST /trade/confirm).")
	return sb.String()
}
