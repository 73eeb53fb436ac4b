package domain

import "time"

// TradeBrief is the human-facing summary of a decision that passed the
// confidence gate. It lives only until the confirmation resolves.
type TradeBrief struct {
	ID             string        `json:"id"`
	Action         Action        `json:"action"`
	Confidence     float64       `json:"confidence"`
	Reasoning      string        `json:"reasoning"`
	TokenID        string        `json:"token_id"`
	MarketQuestion string        `json:"market_question"`
	QuotedPrice    float64       `json:"quoted_price"`
	LimitPrice     float64       `json:"limit_price"`
	Fee            float64       `json:"fee"`
	Amount         float64       `json:"amount"`
	Odds           Odds          `json:"odds"`
	Signals        MarketSignals `json:"signals"`
	CreatedAt      time.Time     `json:"created_at"`
}

// BriefOutcome records how a decision was resolved.
type BriefOutcome string

const (
	OutcomeGated    BriefOutcome = "gated"
	OutcomeAccepted BriefOutcome = "accepted"
	OutcomeSkipped  BriefOutcome = "skipped"
	OutcomeExecuted BriefOutcome = "executed"
	OutcomeFailed   BriefOutcome = "failed"
)
