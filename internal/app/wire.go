package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	s3blob "github.com/alanyoungcy/btcsniper/internal/blob/s3"
	"github.com/alanyoungcy/btcsniper/internal/cache/redis"
	"github.com/alanyoungcy/btcsniper/internal/config"
	"github.com/alanyoungcy/btcsniper/internal/crypto"
	"github.com/alanyoungcy/btcsniper/internal/domain"
	"github.com/alanyoungcy/btcsniper/internal/feed"
	"github.com/alanyoungcy/btcsniper/internal/notify"
	"github.com/alanyoungcy/btcsniper/internal/oracle"
	"github.com/alanyoungcy/btcsniper/internal/platform/binance"
	"github.com/alanyoungcy/btcsniper/internal/platform/coinglass"
	"github.com/alanyoungcy/btcsniper/internal/platform/cryptopanic"
	"github.com/alanyoungcy/btcsniper/internal/platform/polymarket"
	"github.com/alanyoungcy/btcsniper/internal/signals"
	"github.com/alanyoungcy/btcsniper/internal/store/postgres"
)

// Dependencies bundles everything the application runs. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Market access
	Signer *crypto.Signer
	Trader *polymarket.Trader

	// Signals
	Depth      *feed.DepthFeed
	Aggregator *signals.Aggregator
	Oracle     *oracle.Client

	// Notifications
	Notifier    *notify.Notifier
	Suggestions *notify.SuggestionLog

	// Optional persistence; nil when disabled.
	Journal  domain.DecisionJournal
	Audit    domain.AuditStore
	Bus      domain.EventBus
	Archiver *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- Wallet ---
	if cfg.Wallet.HasKey() {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: load wallet key: %w", err))
		}
		signer, err := crypto.NewSigner(key, cfg.Polymarket.ChainID)
		if err != nil {
			return fail(fmt.Errorf("wire: signer: %w", err))
		}
		deps.Signer = signer
	} else {
		logger.WarnContext(ctx, "no wallet key configured, running public-only")
	}

	// --- Polymarket ---
	var hmacAuth *crypto.HMACAuth
	if cfg.Polymarket.HasApiCreds() {
		hmacAuth = &crypto.HMACAuth{
			Key:        cfg.Polymarket.ApiKey,
			Secret:     cfg.Polymarket.ApiSecret,
			Passphrase: cfg.Polymarket.ApiPassphrase,
		}
	}
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, logger)
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, deps.Signer, hmacAuth)

	var ctf *polymarket.CTFClient
	if deps.Signer != nil {
		if hmacAuth == nil && !cfg.Engine.DryRun {
			if _, err := clob.DeriveAPIKey(ctx); err != nil {
				return fail(fmt.Errorf("wire: derive clob credentials: %w", err))
			}
			logger.InfoContext(ctx, "derived clob api credentials")
		}

		if cfg.Polymarket.RPCURL != "" {
			ec, err := ethclient.DialContext(ctx, cfg.Polymarket.RPCURL)
			if err != nil {
				return fail(fmt.Errorf("wire: polygon rpc: %w", err))
			}
			closers = append(closers, ec.Close)

			ctf, err = polymarket.NewCTFClient(ec, deps.Signer, cfg.Polymarket.CTFAddress, cfg.Polymarket.CollateralAddress)
			if err != nil {
				return fail(fmt.Errorf("wire: ctf: %w", err))
			}
		}
	}

	deps.Trader = polymarket.NewTrader(gamma, clob, ctf, deps.Signer, polymarket.TraderConfig{
		PageSize: cfg.Polymarket.DiscoveryPageSize,
		MaxPages: cfg.Polymarket.DiscoveryMaxPages,
		DryRun:   cfg.Engine.DryRun,
	}, logger)

	// --- Signals ---
	deps.Depth = feed.NewDepthFeed(cfg.Binance.StreamURL, cfg.Binance.ReconnectDelay.Duration, logger)
	deps.Aggregator = signals.NewAggregator(
		deps.Depth,
		binance.NewFundingClient(cfg.Binance.ApiKey, cfg.Binance.ApiSecret, cfg.Binance.FuturesBaseURL, cfg.Binance.Symbol),
		coinglass.NewClient(cfg.Coinglass.BaseURL, cfg.Coinglass.ApiKey, "BTC"),
		cryptopanic.NewClient(cfg.CryptoPanic.BaseURL, cfg.CryptoPanic.ApiKey),
		logger,
	)
	deps.Oracle = oracle.NewClient(oracleConfig(cfg), logger)

	// --- Notifications ---
	deps.Suggestions = notify.NewSuggestionLog(cfg.Engine.SuggestionLog)
	deps.Notifier = notify.NewNotifier(buildSenders(cfg.Notify), cfg.Notify.Events, deps.Suggestions, logger)

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Journal = postgres.NewDecisionStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Bus = redisClient.EventBus(redis.DefaultStreamMaxLen)
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		if err := s3Client.Health(ctx); err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client, 0), s3blob.ArchiverConfig{
			SuggestionLog: cfg.Engine.SuggestionLog,
			Interval:      cfg.S3.ArchiveInterval.Duration,
			Journal:       deps.Journal,
			Audit:         deps.Audit,
		}, logger)
	}

	return deps, cleanup, nil
}

func oracleConfig(cfg *config.Config) oracle.Config {
	return oracle.Config{
		APIKey:            cfg.Anthropic.ApiKey,
		BaseURL:           cfg.Anthropic.BaseURL,
		Model:             cfg.Anthropic.Model,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		Timeout:           cfg.Anthropic.Timeout.Duration,
		RequestsPerMinute: int(cfg.Anthropic.RequestsPerMinute),
		Threshold:         cfg.Engine.ConfidenceThreshold,
	}
}

func buildSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}
