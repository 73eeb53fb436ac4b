// Package engine runs the sniper's decision loop: discover the active BTC
// 15-minute market, collect signals, ask the oracle, gate on confidence,
// wait for an operator to confirm and execute.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// Event bus destinations.
const (
	ChannelBriefs   = "sniper:briefs"
	StreamDecisions = "sniper:decisions"
)

// SignalAggregator turns the latest market data into MarketSignals.
type SignalAggregator interface {
	// ReferencePrice is the best bid of the latest depth snapshot. ok is
	// false until the feed has delivered at least one sample.
	ReferencePrice() (price float64, ok bool)
	FetchSignals(ctx context.Context, price float64) (domain.MarketSignals, error)
}

// Oracle classifies a trading opportunity.
type Oracle interface {
	Decide(ctx context.Context, signals domain.MarketSignals, odds domain.Odds) (domain.Decision, error)
}

// Executor talks to the prediction market. PlaceOrder and Merge return a nil
// result and nil error when the adapter is running without credentials.
type Executor interface {
	FindMarkets(ctx context.Context) ([]domain.MarketInfo, error)
	GetOdds(ctx context.Context, yesToken string) domain.Odds
	PlaceOrder(ctx context.Context, tokenID string, amount, price float64) (*domain.OrderResult, error)
	Merge(ctx context.Context, conditionID string) (*domain.MergeResult, error)
}

// Notifier records suggestions and fans events out to operators.
type Notifier interface {
	RecordSuggestion(brief domain.TradeBrief) error
	Notify(ctx context.Context, event, title, message string) error
}

// Dependencies are the engine's collaborators. Journal and Bus are optional.
type Dependencies struct {
	Aggregator SignalAggregator
	Oracle     Oracle
	Executor   Executor
	Notifier   Notifier
	Journal    domain.DecisionJournal
	Bus        domain.EventBus
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Aggregator == nil {
		missing = append(missing, "aggregator")
	}
	if d.Oracle == nil {
		missing = append(missing, "oracle")
	}
	if d.Executor == nil {
		missing = append(missing, "executor")
	}
	if d.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if len(missing) > 0 {
		return fmt.Errorf("engine: missing dependencies: %v", missing)
	}
	return nil
}

// Config holds the loop's tunables.
type Config struct {
	Threshold           float64
	TradeAmount         float64
	Slippage            float64
	Cooldown            time.Duration
	DiscoveryRetry      time.Duration
	FeedWait            time.Duration
	ConfirmTimeout      time.Duration // 0 waits forever
	MarketRefreshCycles int           // 0 disables refresh
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:           0.80,
		TradeAmount:         10,
		Slippage:            domain.DefaultSlippage,
		Cooldown:            10 * time.Second,
		DiscoveryRetry:      60 * time.Second,
		FeedWait:            5 * time.Second,
		MarketRefreshCycles: 1,
	}
}

// Engine is the trading loop. Its state may be read from any goroutine; only
// Run writes it.
type Engine struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger

	out       io.Writer
	terminal  Source
	confirmCh chan string
	queue     *QueueSource
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time

	state atomic.Pointer[Snapshot]

	// loop-owned
	market         *domain.MarketInfo
	sinceDiscovery int
}

// New validates deps and creates an Engine. The terminal confirmation source
// is unset; attach one with WithTerminal.
func New(cfg Config, deps Dependencies, logger *slog.Logger) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	ch := make(chan string, 1)
	e := &Engine{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With(slog.String("component", "engine")),
		out:       os.Stdout,
		confirmCh: ch,
		queue:     NewQueueSource(ch),
		sleep:     sleepCtx,
		now:       time.Now,
	}
	e.state.Store(&Snapshot{Phase: PhaseDiscovering, UpdatedAt: e.now()})
	return e, nil
}

// WithTerminal races src against the API queue during confirmation.
func (e *Engine) WithTerminal(src Source) *Engine {
	e.terminal = src
	return e
}

// WithOutput sets where trade briefs are printed.
func (e *Engine) WithOutput(w io.Writer) *Engine {
	e.out = w
	return e
}

// WithSleep replaces the loop's sleep function.
func (e *Engine) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Engine {
	e.sleep = fn
	return e
}

// WithClock replaces the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Submit queues an operator command for the pending brief. It fails with
// domain.ErrNoBrief when nothing awaits confirmation and with
// domain.ErrConfirmationPending when a command is already queued.
func (e *Engine) Submit(command string) error {
	if e.LatestBrief() == nil {
		return domain.ErrNoBrief
	}
	select {
	case e.confirmCh <- command:
		return nil
	default:
		return domain.ErrConfirmationPending
	}
}

// MergeCurrent merges complementary positions of the tracked market.
func (e *Engine) MergeCurrent(ctx context.Context) (*domain.MergeResult, error) {
	m := e.CurrentMarket()
	if m == nil {
		return nil, domain.ErrNoMarket
	}
	res, err := e.deps.Executor.Merge(ctx, m.ConditionID)
	if err != nil {
		return nil, fmt.Errorf("engine: merge %s: %w", m.ConditionID, err)
	}
	return res, nil
}

// FindMarkets lists the markets the engine would trade.
func (e *Engine) FindMarkets(ctx context.Context) ([]domain.MarketInfo, error) {
	return e.deps.Executor.FindMarkets(ctx)
}

// Run loops until ctx is cancelled. Failures inside a cycle are logged and
// followed by the cooldown; they never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.InfoContext(ctx, "trading engine started",
		slog.Float64("threshold", e.cfg.Threshold),
		slog.Float64("trade_amount", e.cfg.TradeAmount),
		slog.Duration("cooldown", e.cfg.Cooldown),
	)
	for {
		wait := e.runCycle(ctx)
		if err := ctx.Err(); err != nil {
			e.logger.InfoContext(ctx, "trading engine stopped")
			return err
		}
		if err := e.sleep(ctx, wait); err != nil {
			e.logger.InfoContext(ctx, "trading engine stopped")
			return err
		}
	}
}

func (e *Engine) runCycle(ctx context.Context) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "engine cycle panicked", slog.Any("panic", r))
			e.setPhase(PhaseCooldown)
			wait = e.cfg.Cooldown
		}
	}()
	wait, err := e.cycle(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.ErrorContext(ctx, "engine cycle failed", slog.String("error", err.Error()))
		}
		e.setPhase(PhaseCooldown)
		return e.cfg.Cooldown
	}
	return wait
}

func (e *Engine) cycle(ctx context.Context) (time.Duration, error) {
	e.update(func(s *Snapshot) { s.Cycles++ })

	market := e.ensureMarket(ctx)
	if market == nil {
		e.setPhase(PhaseDiscovering)
		e.logger.InfoContext(ctx, "no active BTC 15-minute market",
			slog.Duration("retry_in", e.cfg.DiscoveryRetry))
		return e.cfg.DiscoveryRetry, nil
	}

	e.setPhase(PhaseStreaming)
	price, ok := e.deps.Aggregator.ReferencePrice()
	if !ok {
		e.logger.InfoContext(ctx, "waiting for depth data", slog.Duration("retry_in", e.cfg.FeedWait))
		return e.cfg.FeedWait, nil
	}

	e.setPhase(PhaseDeciding)
	signals, err := e.deps.Aggregator.FetchSignals(ctx, price)
	if err != nil {
		return 0, fmt.Errorf("engine: fetch signals: %w", err)
	}
	e.update(func(s *Snapshot) { s.Signals = &signals })

	odds := e.deps.Executor.GetOdds(ctx, market.YesToken)
	e.update(func(s *Snapshot) { s.Odds = &odds })

	decision := e.decide(ctx, signals, odds)
	e.update(func(s *Snapshot) { s.Decision = &decision })
	e.logger.InfoContext(ctx, "oracle decision",
		slog.String("action", string(decision.Action)),
		slog.Float64("confidence", decision.Confidence),
		slog.Float64("btc_price", signals.BTCPrice),
	)

	if !e.passesGate(decision) {
		e.journal(ctx, *market, decision, signals, odds, nil, domain.OutcomeGated, "")
		e.setPhase(PhaseCooldown)
		return e.cfg.Cooldown, nil
	}

	brief := e.buildBrief(*market, decision, signals, odds)
	accepted := e.confirm(ctx, brief)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !accepted {
		e.logger.InfoContext(ctx, "trade skipped", slog.String("brief_id", brief.ID))
		e.journal(ctx, *market, decision, signals, odds, &brief, domain.OutcomeSkipped, "")
		e.setPhase(PhaseCooldown)
		return e.cfg.Cooldown, nil
	}

	e.execute(ctx, *market, decision, brief)
	e.setPhase(PhaseCooldown)
	return e.cfg.Cooldown, nil
}

// ensureMarket returns the market to trade, discovering or refreshing it as
// needed. A nil result means no market is listed.
func (e *Engine) ensureMarket(ctx context.Context) *domain.MarketInfo {
	if e.market != nil {
		e.sinceDiscovery++
		if e.cfg.MarketRefreshCycles <= 0 || e.sinceDiscovery < e.cfg.MarketRefreshCycles {
			return e.market
		}
	}

	markets, err := e.deps.Executor.FindMarkets(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "market discovery failed", slog.String("error", err.Error()))
		return e.market
	}
	e.sinceDiscovery = 0

	if e.market != nil {
		for _, m := range markets {
			if m.ConditionID == e.market.ConditionID {
				return e.market
			}
		}
		e.logger.InfoContext(ctx, "tracked market no longer listed",
			slog.String("condition_id", e.market.ConditionID))
		e.market = nil
		e.update(func(s *Snapshot) { s.Market = nil })
	}
	if len(markets) == 0 {
		return nil
	}

	m := markets[0]
	e.market = &m
	e.update(func(s *Snapshot) { s.Market = &m })
	e.logger.InfoContext(ctx, "market selected",
		slog.String("condition_id", m.ConditionID),
		slog.String("question", m.Question),
	)
	return e.market
}

func (e *Engine) decide(ctx context.Context, signals domain.MarketSignals, odds domain.Odds) domain.Decision {
	d, err := e.deps.Oracle.Decide(ctx, signals, odds)
	if err != nil {
		e.logger.WarnContext(ctx, "oracle failed, waiting", slog.String("error", err.Error()))
		return domain.WaitDecision(err.Error())
	}
	return d
}

func (e *Engine) passesGate(d domain.Decision) bool {
	return d.Action.IsBuy() && d.Confidence > e.cfg.Threshold
}

// present prints, records and publishes the brief. Everything here happens
// before the confirmation wait starts.
func (e *Engine) present(ctx context.Context, b domain.TradeBrief) {
	e.drainQueue()
	fmt.Fprint(e.out, RenderBrief(b))

	if b.Action.IsBuy() {
		if err := e.deps.Notifier.RecordSuggestion(b); err != nil {
			e.logger.WarnContext(ctx, "suggestion log append failed", slog.String("error", err.Error()))
		}
	}

	e.update(func(s *Snapshot) {
		s.Brief = &b
		s.Phase = PhaseConfirming
	})

	msg := fmt.Sprintf("%s @ %.3f (confidence %.2f) on %q: %s",
		b.Action, b.LimitPrice, b.Confidence, b.MarketQuestion, b.Reasoning)
	if err := e.deps.Notifier.Notify(ctx, "signal_detected", "Signal detected", msg); err != nil {
		e.logger.WarnContext(ctx, "signal notification failed", slog.String("error", err.Error()))
	}
	if e.deps.Bus != nil {
		if payload, err := json.Marshal(b); err == nil {
			if err := e.deps.Bus.Publish(ctx, ChannelBriefs, payload); err != nil {
				e.logger.WarnContext(ctx, "brief publish failed", slog.String("error", err.Error()))
			}
		}
	}
}

// confirm presents the brief and waits for the operator. The brief is cleared
// exactly once on the way out, including when a sink panics mid-publish.
func (e *Engine) confirm(ctx context.Context, b domain.TradeBrief) bool {
	defer e.clearBrief()
	e.present(ctx, b)
	return e.awaitConfirmation(ctx, b)
}

// awaitConfirmation races the terminal against the API queue.
func (e *Engine) awaitConfirmation(ctx context.Context, b domain.TradeBrief) bool {
	waitCtx := ctx
	if e.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
		defer cancel()
	}

	sources := []Source{e.queue}
	if e.terminal != nil {
		sources = append(sources, e.terminal)
	}
	cmd, err := Race(waitCtx, sources...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.InfoContext(ctx, "confirmation timed out", slog.String("brief_id", b.ID))
		} else if ctx.Err() == nil {
			e.logger.InfoContext(ctx, "confirmation ended without a command",
				slog.String("brief_id", b.ID), slog.String("error", err.Error()))
		}
		return false
	}
	e.logger.InfoContext(ctx, "confirmation received",
		slog.String("brief_id", b.ID), slog.String("command", cmd))
	return cmd == CommandContinue
}

func (e *Engine) clearBrief() {
	e.update(func(s *Snapshot) { s.Brief = nil })
	e.drainQueue()
}

func (e *Engine) drainQueue() {
	for {
		select {
		case <-e.confirmCh:
		default:
			return
		}
	}
}

func (e *Engine) execute(ctx context.Context, market domain.MarketInfo, d domain.Decision, b domain.TradeBrief) {
	e.setPhase(PhaseExecuting)
	res, err := e.deps.Executor.PlaceOrder(ctx, b.TokenID, b.Amount, b.LimitPrice)
	switch {
	case err != nil:
		e.logger.ErrorContext(ctx, "order placement failed",
			slog.String("brief_id", b.ID), slog.String("error", err.Error()))
		e.journal(ctx, market, d, b.Signals, b.Odds, &b, domain.OutcomeFailed, domain.OrderStatusFailed)
		e.notify(ctx, "trade_failed", "Trade failed", err.Error())
	case res == nil:
		e.logger.InfoContext(ctx, "order not placed, executor has no credentials",
			slog.String("brief_id", b.ID))
		e.journal(ctx, market, d, b.Signals, b.Odds, &b, domain.OutcomeAccepted, "")
	default:
		e.update(func(s *Snapshot) { s.LastOrder = res })
		e.logger.InfoContext(ctx, "order placed",
			slog.String("brief_id", b.ID),
			slog.String("order_id", res.OrderID),
			slog.String("status", string(res.Status)),
		)
		e.journal(ctx, market, d, b.Signals, b.Odds, &b, domain.OutcomeExecuted, res.Status)
		e.notify(ctx, "trade_executed", "Trade executed",
			fmt.Sprintf("%s %.2f USDC @ %.3f status=%s", b.Action, b.Amount, b.LimitPrice, res.Status))
	}
}

func (e *Engine) notify(ctx context.Context, event, title, msg string) {
	if err := e.deps.Notifier.Notify(ctx, event, title, msg); err != nil {
		e.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event), slog.String("error", err.Error()))
	}
}

// journal persists the decision to the optional journal and event stream.
func (e *Engine) journal(ctx context.Context, market domain.MarketInfo, d domain.Decision, signals domain.MarketSignals,
	odds domain.Odds, b *domain.TradeBrief, outcome domain.BriefOutcome, status domain.OrderStatus) {
	if e.deps.Journal == nil && e.deps.Bus == nil {
		return
	}
	rec := domain.DecisionRecord{
		ID:          uuid.NewString(),
		ConditionID: market.ConditionID,
		Action:      d.Action,
		Confidence:  d.Confidence,
		Reasoning:   d.Reasoning,
		BTCPrice:    signals.BTCPrice,
		YesPrice:    odds.YesPrice,
		NoPrice:     odds.NoPrice,
		Outcome:     outcome,
		OrderStatus: status,
		CreatedAt:   e.now().UTC(),
	}
	if b != nil {
		rec.ID = b.ID
		rec.LimitPrice = b.LimitPrice
		rec.Fee = b.Fee
	}
	if e.deps.Journal != nil {
		if err := e.deps.Journal.Record(ctx, rec); err != nil {
			e.logger.WarnContext(ctx, "decision journal write failed", slog.String("error", err.Error()))
		}
	}
	if e.deps.Bus != nil {
		payload, err := json.Marshal(rec)
		if err != nil {
			return
		}
		if err := e.deps.Bus.StreamAppend(ctx, StreamDecisions, payload); err != nil {
			e.logger.WarnContext(ctx, "decision stream append failed", slog.String("error", err.Error()))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
