// Package config defines the top-level configuration for the BTC sniper and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by environment variables.
type Config struct {
	Wallet      WalletConfig      `toml:"wallet"`
	Polymarket  PolymarketConfig  `toml:"polymarket"`
	Anthropic   AnthropicConfig   `toml:"anthropic"`
	Binance     BinanceConfig     `toml:"binance"`
	Coinglass   CoinglassConfig   `toml:"coinglass"`
	CryptoPanic CryptoPanicConfig `toml:"cryptopanic"`
	Engine      EngineConfig      `toml:"engine"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	LogLevel    string            `toml:"log_level"`
}

// WalletConfig holds Polygon wallet credentials. Leaving both key sources
// empty runs the bot in public-only mode.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// HasKey reports whether any wallet key source is configured.
func (w WalletConfig) HasKey() bool {
	return w.PrivateKey != "" || w.EncryptedKeyPath != ""
}

// PolymarketConfig holds Polymarket API endpoints, CLOB credentials and
// chain parameters.
type PolymarketConfig struct {
	ClobHost          string `toml:"clob_host"`
	GammaHost         string `toml:"gamma_host"`
	ChainID           int    `toml:"chain_id"`
	RPCURL            string `toml:"rpc_url"`
	ApiKey            string `toml:"api_key"`
	ApiSecret         string `toml:"api_secret"`
	ApiPassphrase     string `toml:"api_passphrase"`
	DiscoveryPageSize int    `toml:"discovery_page_size"`
	DiscoveryMaxPages int    `toml:"discovery_max_pages"`
	CTFAddress        string `toml:"ctf_address"`
	CollateralAddress string `toml:"collateral_address"`
}

// HasApiCreds reports whether L2 CLOB credentials were supplied.
func (p PolymarketConfig) HasApiCreds() bool {
	return p.ApiKey != "" && p.ApiSecret != "" && p.ApiPassphrase != ""
}

// AnthropicConfig configures the decision oracle.
type AnthropicConfig struct {
	ApiKey            string   `toml:"api_key"`
	BaseURL           string   `toml:"base_url"`
	Model             string   `toml:"model"`
	MaxTokens         int      `toml:"max_tokens"`
	Timeout           duration `toml:"timeout"`
	RequestsPerMinute float64  `toml:"requests_per_minute"`
}

// BinanceConfig configures the depth stream and the futures funding lookup.
type BinanceConfig struct {
	ApiKey         string   `toml:"api_key"`
	ApiSecret      string   `toml:"api_secret"`
	StreamURL      string   `toml:"stream_url"`
	FuturesBaseURL string   `toml:"futures_base_url"`
	Symbol         string   `toml:"symbol"`
	ReconnectDelay duration `toml:"reconnect_delay"`
}

// CoinglassConfig configures the liquidation feed. An empty key disables it.
type CoinglassConfig struct {
	ApiKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// CryptoPanicConfig configures the news sentiment feed. An empty key disables
// it.
type CryptoPanicConfig struct {
	ApiKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// EngineConfig holds the trading loop parameters.
type EngineConfig struct {
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	TradeAmount         float64  `toml:"trade_amount"`
	Slippage            float64  `toml:"slippage"`
	Cooldown            duration `toml:"cooldown"`
	DiscoveryRetry      duration `toml:"discovery_retry"`
	FeedWait            duration `toml:"feed_wait"`
	ConfirmTimeout      duration `toml:"confirm_timeout"`
	DryRun              bool     `toml:"dry_run"`
	Interactive         bool     `toml:"interactive"`
	SuggestionLog       string   `toml:"suggestion_log"`
	MarketRefreshCycles int      `toml:"market_refresh_cycles"`
}

// PostgresConfig holds the optional decision journal connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the optional event bus connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the optional suggestion-log archive parameters.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	Prefix          string   `toml:"prefix"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP control surface parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	ApiKey      string   `toml:"api_key"`
	RateLimit   float64  `toml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst   int      `toml:"rate_burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:          "https://clob.polymarket.com",
			GammaHost:         "https://gamma-api.polymarket.com",
			ChainID:           137,
			RPCURL:            "https://polygon-rpc.com",
			DiscoveryPageSize: 100,
			DiscoveryMaxPages: 5,
			CTFAddress:        "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045",
			CollateralAddress: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		},
		Anthropic: AnthropicConfig{
			BaseURL:           "https://api.anthropic.com",
			Model:             "claude-3-5-sonnet-20240620",
			MaxTokens:         1024,
			Timeout:           duration{60 * time.Second},
			RequestsPerMinute: 30,
		},
		Binance: BinanceConfig{
			StreamURL:      "wss://stream.binance.com:9443/ws/btcusdt@depth20@100ms",
			FuturesBaseURL: "https://fapi.binance.com",
			Symbol:         "BTCUSDT",
			ReconnectDelay: duration{5 * time.Second},
		},
		Coinglass: CoinglassConfig{
			BaseURL: "https://open-api.coinglass.com",
		},
		CryptoPanic: CryptoPanicConfig{
			BaseURL: "https://cryptopanic.com",
		},
		Engine: EngineConfig{
			ConfidenceThreshold: 0.80,
			TradeAmount:         10,
			Slippage:            0.01,
			Cooldown:            duration{10 * time.Second},
			DiscoveryRetry:      duration{60 * time.Second},
			FeedWait:            duration{5 * time.Second},
			DryRun:              true,
			Interactive:         true,
			SuggestionLog:       "suggestions.log",
			MarketRefreshCycles: 1,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "btcsniper",
			ForcePathStyle:  true,
			ArchiveInterval: duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"*"},
			RateLimit:   10,
			RateBurst:   20,
		},
		Notify: NotifyConfig{
			Events: []string{"signal_detected", "trade_executed", "trade_failed"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet is optional; a missing key selects public-only mode.
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Polymarket
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.DiscoveryPageSize < 1 {
		errs = append(errs, "polymarket: discovery_page_size must be >= 1")
	}
	if c.Polymarket.DiscoveryMaxPages < 1 {
		errs = append(errs, "polymarket: discovery_max_pages must be >= 1")
	}
	ak := c.Polymarket.ApiKey != ""
	as := c.Polymarket.ApiSecret != ""
	ap := c.Polymarket.ApiPassphrase != ""
	if (ak || as || ap) && !(ak && as && ap) {
		errs = append(errs, "polymarket: api_key, api_secret, and api_passphrase must all be set together")
	}

	// Anthropic
	if c.Anthropic.ApiKey == "" {
		errs = append(errs, "anthropic: api_key is required (or set ANTHROPIC_API_KEY)")
	}
	if c.Anthropic.Model == "" {
		errs = append(errs, "anthropic: model must not be empty")
	}
	if c.Anthropic.MaxTokens < 1 {
		errs = append(errs, "anthropic: max_tokens must be >= 1")
	}

	// Binance
	if c.Binance.StreamURL == "" {
		errs = append(errs, "binance: stream_url must not be empty")
	}
	if c.Binance.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "binance: reconnect_delay must be > 0")
	}

	// Engine
	e := c.Engine
	if e.ConfidenceThreshold < 0 || e.ConfidenceThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("engine: confidence_threshold must be in [0,1), got %v", e.ConfidenceThreshold))
	}
	if e.TradeAmount <= 0 {
		errs = append(errs, "engine: trade_amount must be > 0")
	}
	if e.Slippage < 0 {
		errs = append(errs, "engine: slippage must be >= 0")
	}
	if e.Cooldown.Duration < 0 {
		errs = append(errs, "engine: cooldown must be >= 0")
	}
	if e.DiscoveryRetry.Duration <= 0 {
		errs = append(errs, "engine: discovery_retry must be > 0")
	}
	if e.FeedWait.Duration <= 0 {
		errs = append(errs, "engine: feed_wait must be > 0")
	}
	if e.ConfirmTimeout.Duration < 0 {
		errs = append(errs, "engine: confirm_timeout must be >= 0")
	}
	if e.SuggestionLog == "" {
		errs = append(errs, "engine: suggestion_log must not be empty")
	}
	if e.MarketRefreshCycles < 0 {
		errs = append(errs, "engine: market_refresh_cycles must be >= 0")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
			errs = append(errs, "server: rate_burst must be >= 1 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
