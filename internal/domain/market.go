package domain

// MarketInfo is the binary market the engine is currently tracking. It is
// replaced wholesale on rediscovery and never mutated field by field.
type MarketInfo struct {
	ConditionID string `json:"condition_id"`
	Question    string `json:"question"`
	YesToken    string `json:"yes_token"`
	NoToken     string `json:"no_token"`
	Active      bool   `json:"active"`
}

// Odds holds the current binary-outcome prices. NoPrice is not required to
// equal 1 - YesPrice.
type Odds struct {
	YesPrice float64 `json:"yes_price"`
	NoPrice  float64 `json:"no_price"`
}

// NeutralOdds is returned whenever the odds lookup fails.
func NeutralOdds() Odds {
	return Odds{YesPrice: 0.5, NoPrice: 0.5}
}
