package domain

import "math"

// DefaultSlippage is the one-cent allowance added to the quoted price.
const DefaultSlippage = 0.01

// LimitPrice returns the order limit for a quoted outcome price.
func LimitPrice(quoted, slippage float64) float64 {
	return quoted + slippage
}

// DynamicFee models the exchange fee curve: 0.01 at the 0.50 midpoint
// falling linearly to 0.001 at 0 and 1.
func DynamicFee(limit float64) float64 {
	return 0.001 + 0.009*(1-math.Abs(limit-0.50)/0.50)
}

// TradeEstimate is the cost/payout picture of buying amount USDC of an
// outcome at limit.
type TradeEstimate struct {
	Fee        float64
	Shares     float64
	TotalCost  float64
	Payout     float64
	Profitable bool
}

// EstimateTrade computes fee, share count, total cost and the payout if the
// outcome resolves in our favour.
func EstimateTrade(amount, limit float64) TradeEstimate {
	est := TradeEstimate{Fee: DynamicFee(limit)}
	est.TotalCost = amount * (1 + est.Fee)
	if limit > 0 {
		est.Shares = amount / limit
		est.Payout = est.Shares
	}
	est.Profitable = est.Payout > est.TotalCost
	return est
}
