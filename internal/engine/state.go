package engine

import (
	"time"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// Phase names the loop step the engine is currently in.
type Phase string

const (
	PhaseDiscovering Phase = "DISCOVERING_MARKET"
	PhaseStreaming   Phase = "STREAMING_SIGNALS"
	PhaseDeciding    Phase = "AWAITING_DECISION"
	PhaseConfirming  Phase = "AWAITING_CONFIRMATION"
	PhaseExecuting   Phase = "EXECUTING"
	PhaseCooldown    Phase = "COOLDOWN"
)

// Snapshot is an immutable view of engine state. A new Snapshot is stored
// every time the loop changes anything; readers never see a partial update.
type Snapshot struct {
	Phase     Phase                 `json:"phase"`
	Market    *domain.MarketInfo    `json:"market"`
	Signals   *domain.MarketSignals `json:"signals"`
	Odds      *domain.Odds          `json:"odds"`
	Brief     *domain.TradeBrief    `json:"brief"`
	Decision  *domain.Decision      `json:"decision"`
	LastOrder *domain.OrderResult   `json:"last_order"`
	Cycles    int64                 `json:"cycles"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// State returns the latest snapshot. It is never nil.
func (e *Engine) State() Snapshot {
	return *e.state.Load()
}

// LatestSignals returns the most recent aggregated signals, or nil before
// the first decision cycle completed signal collection.
func (e *Engine) LatestSignals() *domain.MarketSignals {
	return e.state.Load().Signals
}

// LatestBrief returns the brief awaiting confirmation, or nil.
func (e *Engine) LatestBrief() *domain.TradeBrief {
	return e.state.Load().Brief
}

// CurrentMarket returns the tracked market, or nil while discovering.
func (e *Engine) CurrentMarket() *domain.MarketInfo {
	return e.state.Load().Market
}

// update copies the current snapshot, applies fn and publishes the result.
// Only the engine loop calls it.
func (e *Engine) update(fn func(s *Snapshot)) {
	next := *e.state.Load()
	fn(&next)
	next.UpdatedAt = e.now()
	e.state.Store(&next)
}

func (e *Engine) setPhase(p Phase) {
	e.update(func(s *Snapshot) { s.Phase = p })
}
