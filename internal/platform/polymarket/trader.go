package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/btcsniper/internal/crypto"
	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// Mode describes how much the trader is allowed to do.
type Mode string

const (
	// ModePublic has no wallet: orders and merges are no-ops.
	ModePublic Mode = "public"
	// ModeDryRun has a wallet but only reports what it would do.
	ModeDryRun Mode = "dry_run"
	// ModeLive signs and submits orders and merge transactions.
	ModeLive Mode = "live"
)

// usdcDecimals scales USDC and outcome-share amounts on chain.
const usdcDecimals = 1_000_000

// TraderConfig holds discovery and execution settings.
type TraderConfig struct {
	PageSize int
	MaxPages int
	DryRun   bool
}

// Trader is the execution adapter: market discovery, odds, orders and
// merges for the BTC 15-minute markets.
type Trader struct {
	gamma  *GammaClient
	clob   *ClobClient
	ctf    *CTFClient
	signer *crypto.Signer
	cfg    TraderConfig
	mode   Mode
	logger *slog.Logger

	mu    sync.RWMutex
	known map[string]domain.MarketInfo // by condition id
}

// NewTrader wires the adapter. signer == nil selects ModePublic; ctf may be
// nil when no RPC endpoint is configured, which disables merges.
func NewTrader(gamma *GammaClient, clob *ClobClient, ctf *CTFClient, signer *crypto.Signer, cfg TraderConfig, logger *slog.Logger) *Trader {
	mode := ModeLive
	switch {
	case signer == nil:
		mode = ModePublic
	case cfg.DryRun:
		mode = ModeDryRun
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &Trader{
		gamma:  gamma,
		clob:   clob,
		ctf:    ctf,
		signer: signer,
		cfg:    cfg,
		mode:   mode,
		logger: logger.With(slog.String("component", "trader"), slog.String("mode", string(mode))),
		known:  make(map[string]domain.MarketInfo),
	}
}

// Mode returns the execution mode selected at construction.
func (t *Trader) Mode() Mode {
	return t.mode
}

// FindMarkets lists the active BTC 15-minute markets.
func (t *Trader) FindMarkets(ctx context.Context) ([]domain.MarketInfo, error) {
	markets, err := t.gamma.FindBTC15mMarkets(ctx, t.cfg.PageSize, t.cfg.MaxPages)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	for _, m := range markets {
		t.known[m.ConditionID] = m
	}
	t.mu.Unlock()
	return markets, nil
}

// GetOdds reads the YES book: yes = best bid (0.5 without bids), no = 1-yes.
// Any failure yields neutral odds.
func (t *Trader) GetOdds(ctx context.Context, yesToken string) domain.Odds {
	book, err := t.clob.GetBook(ctx, yesToken)
	if err != nil {
		t.logger.WarnContext(ctx, "odds fetch failed, using neutral odds",
			slog.String("token_id", yesToken), slog.String("error", err.Error()))
		return domain.NeutralOdds()
	}
	yes, ok := book.BestBid()
	if !ok {
		yes = 0.5
	}
	return domain.Odds{YesPrice: yes, NoPrice: 1 - yes}
}

// PlaceOrder buys amount USDC of tokenID at limit price.
func (t *Trader) PlaceOrder(ctx context.Context, tokenID string, amount, price float64) (*domain.OrderResult, error) {
	est := domain.EstimateTrade(amount, price)
	switch t.mode {
	case ModePublic:
		t.logger.DebugContext(ctx, "public-only mode, order not placed", slog.String("token_id", tokenID))
		return nil, nil
	case ModeDryRun:
		t.logger.InfoContext(ctx, "dry run order",
			slog.String("token_id", tokenID),
			slog.Float64("shares", est.Shares),
			slog.Float64("price", price),
			slog.Float64("dynamic_fee", est.Fee),
			slog.Float64("total_cost", est.TotalCost),
			slog.Float64("potential_payout", est.Payout),
		)
		if !est.Profitable {
			t.logger.WarnContext(ctx, "dry run order would be unprofitable after fees", slog.String("token_id", tokenID))
		}
		return &domain.OrderResult{
			Status:     domain.OrderStatusDryRun,
			TokenID:    tokenID,
			Amount:     amount,
			Price:      price,
			DynamicFee: est.Fee,
			TotalCost:  est.TotalCost,
			Payout:     est.Payout,
		}, nil
	}

	order, salt, err := t.buildOrder(tokenID, amount, price)
	if err != nil {
		return nil, err
	}
	res, err := t.clob.PostOrder(ctx, order, salt)
	if err != nil {
		return nil, err
	}
	t.logger.InfoContext(ctx, "order posted",
		slog.String("order_id", res.OrderID), slog.String("status", res.Status))
	return &domain.OrderResult{
		OrderID:    res.OrderID,
		Status:     orderStatus(res.Status),
		TokenID:    tokenID,
		Amount:     amount,
		Price:      order.Price,
		DynamicFee: est.Fee,
		TotalCost:  est.TotalCost,
		Payout:     est.Payout,
	}, nil
}

// buildOrder signs a GTC BUY order. Prices snap to the one-cent tick inside
// [0.01, 0.99].
func (t *Trader) buildOrder(tokenID string, amount, price float64) (domain.Order, int64, error) {
	price = math.Round(price*100) / 100
	price = math.Max(0.01, math.Min(0.99, price))
	if amount <= 0 {
		return domain.Order{}, 0, fmt.Errorf("polymarket/trader: %w: amount must be positive", domain.ErrInvalidOrder)
	}

	maker := big.NewInt(int64(math.Floor(amount * usdcDecimals)))
	taker := big.NewInt(int64(math.Floor(amount / price * usdcDecimals)))
	salt := int64(uuid.New().ID())
	wallet := t.signer.Address().Hex()

	sig, err := t.signer.SignOrder(crypto.OrderPayload{
		Salt:          fmt.Sprint(salt),
		Maker:         wallet,
		Signer:        wallet,
		Taker:         zeroAddress,
		TokenID:       tokenID,
		MakerAmount:   maker.String(),
		TakerAmount:   taker.String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          0,
		SignatureType: 0,
	})
	if err != nil {
		return domain.Order{}, 0, fmt.Errorf("polymarket/trader: %w: %v", domain.ErrSigningFailed, err)
	}

	return domain.Order{
		ID:          uuid.NewString(),
		TokenID:     tokenID,
		Wallet:      wallet,
		Side:        domain.OrderSideBuy,
		Type:        domain.OrderTypeGTC,
		Price:       price,
		AmountUSDC:  amount,
		Salt:        fmt.Sprint(salt),
		MakerAmount: maker,
		TakerAmount: taker,
		Signature:   sig,
		CreatedAt:   time.Now().UTC(),
	}, salt, nil
}

// Merge redeems complete YES/NO sets of a market previously returned by
// FindMarkets back into USDC. Only an unknown market is an error; chain
// failures are logged and yield a nil result.
func (t *Trader) Merge(ctx context.Context, conditionID string) (*domain.MergeResult, error) {
	if t.mode == ModePublic {
		t.logger.DebugContext(ctx, "public-only mode, merge skipped", slog.String("condition_id", conditionID))
		return nil, nil
	}
	if t.ctf == nil {
		t.logger.WarnContext(ctx, "merge unavailable, no polygon rpc configured", slog.String("condition_id", conditionID))
		return nil, nil
	}

	t.mu.RLock()
	market, ok := t.known[conditionID]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("polymarket/trader: merge %s: %w", conditionID, domain.ErrNoMarket)
	}

	amount, err := t.ctf.MergeableAmount(ctx, market)
	if err != nil {
		t.mergeFailed(ctx, conditionID, err)
		return nil, nil
	}
	res := &domain.MergeResult{ConditionID: conditionID, Amount: amount.String()}
	if amount.Sign() == 0 {
		res.Skipped = true
		res.Reason = "no complete YES/NO sets held"
		return res, nil
	}
	if t.mode == ModeDryRun {
		res.Skipped = true
		res.Reason = "dry run"
		t.logger.InfoContext(ctx, "dry run merge", slog.String("condition_id", conditionID), slog.String("amount", res.Amount))
		return res, nil
	}

	hash, err := t.ctf.Merge(ctx, conditionID, amount)
	if err != nil {
		t.mergeFailed(ctx, conditionID, err)
		return nil, nil
	}
	res.TxHash = hash.Hex()
	t.logger.InfoContext(ctx, "merge submitted",
		slog.String("condition_id", conditionID),
		slog.String("amount", res.Amount),
		slog.String("tx_hash", res.TxHash),
	)
	return res, nil
}

func (t *Trader) mergeFailed(ctx context.Context, conditionID string, err error) {
	t.logger.ErrorContext(ctx, "merge failed",
		slog.String("condition_id", conditionID),
		slog.String("error", err.Error()),
	)
}
