// Package signals assembles MarketSignals from the depth feed and the
// funding, liquidation and news providers.
package signals

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

const (
	// WallRange is the fraction of the reference price within which depth
	// levels count as walls.
	WallRange = 0.005
	// TopWalls is how many walls are kept per side.
	TopWalls = 3
)

// DepthSource exposes the latest depth snapshot.
type DepthSource interface {
	Latest() *domain.DepthSnapshot
}

// FundingSource returns the perpetual funding context.
type FundingSource interface {
	Funding(ctx context.Context) (*domain.FundingInfo, error)
}

// LiquidationSource returns hourly liquidation totals.
type LiquidationSource interface {
	Liquidations(ctx context.Context) (domain.LiquidationData, error)
}

// SentimentSource returns the news sentiment.
type SentimentSource interface {
	Sentiment(ctx context.Context) (domain.NewsSentiment, error)
}

// Aggregator builds one MarketSignals per engine cycle. Provider failures
// degrade to neutral values and never fail the snapshot.
type Aggregator struct {
	depth        DepthSource
	funding      FundingSource
	liquidations LiquidationSource
	sentiment    SentimentSource
	logger       *slog.Logger
	now          func() time.Time
}

// NewAggregator creates an aggregator. Any provider except depth may be nil.
func NewAggregator(depth DepthSource, funding FundingSource, liquidations LiquidationSource, sentiment SentimentSource, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		depth:        depth,
		funding:      funding,
		liquidations: liquidations,
		sentiment:    sentiment,
		logger:       logger.With(slog.String("component", "signals")),
		now:          time.Now,
	}
}

// ReferencePrice is the best bid of the latest depth snapshot.
func (a *Aggregator) ReferencePrice() (float64, bool) {
	return a.depth.Latest().BestBid()
}

// FetchSignals queries the providers concurrently and returns a snapshot
// at price. The error is reserved for a cancelled context.
func (a *Aggregator) FetchSignals(ctx context.Context, price float64) (domain.MarketSignals, error) {
	out := domain.MarketSignals{
		BTCPrice:  price,
		OrderBook: Walls(a.depth.Latest(), price),
		News:      domain.NeutralSentiment(),
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.funding != nil {
		g.Go(func() error {
			f, err := a.funding.Funding(gctx)
			if err != nil {
				a.warn(gctx, "funding", err)
				return nil
			}
			out.Funding = f
			return nil
		})
	}
	if a.liquidations != nil {
		g.Go(func() error {
			l, err := a.liquidations.Liquidations(gctx)
			if err != nil {
				a.warn(gctx, "liquidations", err)
				return nil
			}
			out.Liquidations = l
			return nil
		})
	}
	if a.sentiment != nil {
		g.Go(func() error {
			s, err := a.sentiment.Sentiment(gctx)
			if err != nil {
				a.warn(gctx, "sentiment", err)
				return nil
			}
			out.News = s
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return domain.MarketSignals{}, err
	}

	out.Timestamp = a.now().UTC()
	return out, nil
}

func (a *Aggregator) warn(ctx context.Context, provider string, err error) {
	a.logger.WarnContext(ctx, "signal provider failed, using neutral value",
		slog.String("provider", provider),
		slog.String("error", err.Error()),
	)
}

// Walls selects bids at or above price*(1-WallRange) and asks at or below
// price*(1+WallRange), each ordered by volume descending and cut to TopWalls.
func Walls(snap *domain.DepthSnapshot, price float64) domain.OrderBookWalls {
	if snap == nil {
		return domain.OrderBookWalls{TopBidWalls: []domain.Wall{}, TopAskWalls: []domain.Wall{}}
	}
	lower := price * (1 - WallRange)
	upper := price * (1 + WallRange)

	bids := make([]domain.Wall, 0, len(snap.Bids))
	for _, b := range snap.Bids {
		if b.Price >= lower {
			bids = append(bids, b)
		}
	}
	asks := make([]domain.Wall, 0, len(snap.Asks))
	for _, a := range snap.Asks {
		if a.Price <= upper {
			asks = append(asks, a)
		}
	}
	return domain.OrderBookWalls{TopBidWalls: topByVolume(bids), TopAskWalls: topByVolume(asks)}
}

func topByVolume(walls []domain.Wall) []domain.Wall {
	sort.SliceStable(walls, func(i, j int) bool { return walls[i].Volume > walls[j].Volume })
	if len(walls) > TopWalls {
		walls = walls[:TopWalls]
	}
	return walls
}
