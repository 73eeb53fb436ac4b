// Package app provides the top-level lifecycle of the sniper. It wires every
// dependency once, then runs the depth feed, the trading engine, the HTTP
// control surface and the optional archiver until the context ends.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/btcsniper/internal/config"
	"github.com/alanyoungcy/btcsniper/internal/engine"
	"github.com/alanyoungcy/btcsniper/internal/server"
	"github.com/alanyoungcy/btcsniper/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the background goroutines and blocks
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	eng, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	a.logger.InfoContext(ctx, "starting sniper",
		slog.String("trading_mode", string(deps.Trader.Mode())),
		slog.Bool("interactive", a.cfg.Engine.Interactive),
		slog.Bool("journal", deps.Journal != nil),
		slog.Bool("event_bus", deps.Bus != nil),
		slog.Bool("archiver", deps.Archiver != nil),
	)
	a.audit(ctx, deps, "sniper_started", map[string]any{
		"trading_mode": string(deps.Trader.Mode()),
	})
	defer a.audit(context.WithoutCancel(ctx), deps, "sniper_stopped", nil)

	if err := deps.Notifier.NotifyAll(ctx, "Sniper started",
		fmt.Sprintf("trading mode %s, threshold %.2f", deps.Trader.Mode(), a.cfg.Engine.ConfidenceThreshold)); err != nil {
		a.logger.WarnContext(ctx, "startup notification failed", slog.String("error", err.Error()))
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Depth.Run(ctx)
	})
	g.Go(func() error {
		return eng.Run(ctx)
	})
	if a.cfg.Server.Enabled {
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.ApiKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateBurst:   a.cfg.Server.RateBurst,
		}, handler.NewEngineHandler(eng, deps.Notifier, a.logger), a.logger)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	return g.Wait()
}

func (a *App) buildEngine(deps *Dependencies) (*engine.Engine, error) {
	eng, err := engine.New(engineConfig(a.cfg.Engine), engine.Dependencies{
		Aggregator: deps.Aggregator,
		Oracle:     deps.Oracle,
		Executor:   deps.Trader,
		Notifier:   deps.Notifier,
		Journal:    deps.Journal,
		Bus:        deps.Bus,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	if a.cfg.Engine.Interactive {
		eng.WithTerminal(engine.NewLineSource(os.Stdin))
	}
	return eng, nil
}

func (a *App) audit(ctx context.Context, deps *Dependencies, event string, detail map[string]any) {
	if deps.Audit == nil {
		return
	}
	if detail == nil {
		detail = map[string]any{}
	}
	detail["at"] = time.Now().UTC().Format(time.RFC3339)
	if err := deps.Audit.Log(ctx, event, detail); err != nil {
		a.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func engineConfig(cfg config.EngineConfig) engine.Config {
	out := engine.DefaultConfig()
	out.Threshold = cfg.ConfidenceThreshold
	out.TradeAmount = cfg.TradeAmount
	out.Slippage = cfg.Slippage
	out.ConfirmTimeout = cfg.ConfirmTimeout.Duration
	out.MarketRefreshCycles = cfg.MarketRefreshCycles
	if cfg.Cooldown.Duration > 0 {
		out.Cooldown = cfg.Cooldown.Duration
	}
	if cfg.DiscoveryRetry.Duration > 0 {
		out.DiscoveryRetry = cfg.DiscoveryRetry.Duration
	}
	if cfg.FeedWait.Duration > 0 {
		out.FeedWait = cfg.FeedWait.Duration
	}
	return out
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
