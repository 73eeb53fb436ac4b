package domain

import "time"

// Wall is a cluster of standing volume at one order-book price level.
type Wall struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// OrderBookWalls holds the largest bid and ask walls near the reference price.
type OrderBookWalls struct {
	TopBidWalls []Wall `json:"top_bid_walls"`
	TopAskWalls []Wall `json:"top_ask_walls"`
}

// FundingInfo is the perpetual-futures funding context.
type FundingInfo struct {
	CurrentFundingRate float64 `json:"current_funding_rate"`
	FundingRate1hAvg   float64 `json:"funding_rate_1h_avg"`
}

// LiquidationData holds liquidated notional (USD) over the last hour.
type LiquidationData struct {
	ShortVol float64 `json:"short_vol"`
	LongVol  float64 `json:"long_vol"`
}

// NewsSentiment is a 0..10 score derived from news votes. 5 is neutral.
type NewsSentiment struct {
	SentimentScore float64  `json:"sentiment_score"`
	Headlines      []string `json:"headlines"`
}

// NeutralSentiment is returned when no sentiment provider is reachable.
func NeutralSentiment() NewsSentiment {
	return NewsSentiment{SentimentScore: 5.0, Headlines: []string{}}
}

// MarketSignals is one immutable snapshot of external market conditions.
type MarketSignals struct {
	Timestamp    time.Time       `json:"timestamp"`
	BTCPrice     float64         `json:"btc_price"`
	OrderBook    OrderBookWalls  `json:"order_book"`
	Funding      *FundingInfo    `json:"funding"`
	Liquidations LiquidationData `json:"liquidations"`
	News         NewsSentiment   `json:"news"`
}

// DepthSnapshot is the latest order-book depth received from the market-data
// feed. The feed replaces the whole snapshot; readers never see a partial one.
type DepthSnapshot struct {
	Bids       []Wall
	Asks       []Wall
	ReceivedAt time.Time
}

// BestBid returns the highest bid price, or false when there are no bids.
func (d *DepthSnapshot) BestBid() (float64, bool) {
	if d == nil || len(d.Bids) == 0 {
		return 0, false
	}
	return d.Bids[0].Price, true
}
