package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, loads dotenv files, applies environment variable
// overrides, and returns the final Config. A missing file is not an error so
// env-only deployments keep working. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	loadDotenv()
	applyLegacyEnv(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// loadDotenv loads resources/.env.<APP_ENV> (APP_ENV defaults to "local")
// and then .env. Variables already present in the environment are never
// overwritten, and the first file to define a key wins. Missing files are
// ignored.
func loadDotenv() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	_ = godotenv.Load(filepath.Join("resources", ".env."+env))
	_ = godotenv.Load()
}

// applyLegacyEnv maps the unprefixed variable names used by earlier
// deployments. SNIPER_* variables are applied afterwards and win.
func applyLegacyEnv(cfg *Config) {
	setStr(&cfg.Wallet.PrivateKey, "POLYGON_PRIVATE_KEY")
	setStr(&cfg.Polymarket.ApiKey, "CLOB_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "CLOB_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "CLOB_PASSPHRASE")
	setStr(&cfg.Polymarket.ClobHost, "CLOB_HOST")
	setStr(&cfg.Anthropic.ApiKey, "ANTHROPIC_API_KEY")
	setStr(&cfg.Binance.ApiKey, "BINANCE_API_KEY")
	setStr(&cfg.Binance.ApiSecret, "BINANCE_SECRET")
	setStr(&cfg.Coinglass.ApiKey, "COINGLASS_API_KEY")
	setStr(&cfg.CryptoPanic.ApiKey, "CRYPTOPANIC_API_KEY")
}

// applyEnvOverrides reads well-known SNIPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SNIPER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SNIPER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SNIPER_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "SNIPER_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "SNIPER_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.ChainID, "SNIPER_POLYMARKET_CHAIN_ID")
	setStr(&cfg.Polymarket.RPCURL, "SNIPER_POLYMARKET_RPC_URL")
	setStr(&cfg.Polymarket.ApiKey, "SNIPER_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "SNIPER_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "SNIPER_POLYMARKET_API_PASSPHRASE")
	setInt(&cfg.Polymarket.DiscoveryPageSize, "SNIPER_POLYMARKET_DISCOVERY_PAGE_SIZE")
	setInt(&cfg.Polymarket.DiscoveryMaxPages, "SNIPER_POLYMARKET_DISCOVERY_MAX_PAGES")

	// ── Anthropic ──
	setStr(&cfg.Anthropic.ApiKey, "SNIPER_ANTHROPIC_API_KEY")
	setStr(&cfg.Anthropic.BaseURL, "SNIPER_ANTHROPIC_BASE_URL")
	setStr(&cfg.Anthropic.Model, "SNIPER_ANTHROPIC_MODEL")
	setInt(&cfg.Anthropic.MaxTokens, "SNIPER_ANTHROPIC_MAX_TOKENS")
	setDuration(&cfg.Anthropic.Timeout, "SNIPER_ANTHROPIC_TIMEOUT")
	setFloat64(&cfg.Anthropic.RequestsPerMinute, "SNIPER_ANTHROPIC_REQUESTS_PER_MINUTE")

	// ── Binance ──
	setStr(&cfg.Binance.ApiKey, "SNIPER_BINANCE_API_KEY")
	setStr(&cfg.Binance.ApiSecret, "SNIPER_BINANCE_API_SECRET")
	setStr(&cfg.Binance.StreamURL, "SNIPER_BINANCE_STREAM_URL")
	setStr(&cfg.Binance.FuturesBaseURL, "SNIPER_BINANCE_FUTURES_BASE_URL")
	setStr(&cfg.Binance.Symbol, "SNIPER_BINANCE_SYMBOL")
	setDuration(&cfg.Binance.ReconnectDelay, "SNIPER_BINANCE_RECONNECT_DELAY")

	// ── Coinglass / CryptoPanic ──
	setStr(&cfg.Coinglass.ApiKey, "SNIPER_COINGLASS_API_KEY")
	setStr(&cfg.Coinglass.BaseURL, "SNIPER_COINGLASS_BASE_URL")
	setStr(&cfg.CryptoPanic.ApiKey, "SNIPER_CRYPTOPANIC_API_KEY")
	setStr(&cfg.CryptoPanic.BaseURL, "SNIPER_CRYPTOPANIC_BASE_URL")

	// ── Engine ──
	setFloat64(&cfg.Engine.ConfidenceThreshold, "SNIPER_ENGINE_CONFIDENCE_THRESHOLD")
	setFloat64(&cfg.Engine.TradeAmount, "SNIPER_ENGINE_TRADE_AMOUNT")
	setFloat64(&cfg.Engine.Slippage, "SNIPER_ENGINE_SLIPPAGE")
	setDuration(&cfg.Engine.Cooldown, "SNIPER_ENGINE_COOLDOWN")
	setDuration(&cfg.Engine.DiscoveryRetry, "SNIPER_ENGINE_DISCOVERY_RETRY")
	setDuration(&cfg.Engine.FeedWait, "SNIPER_ENGINE_FEED_WAIT")
	setDuration(&cfg.Engine.ConfirmTimeout, "SNIPER_ENGINE_CONFIRM_TIMEOUT")
	setBool(&cfg.Engine.DryRun, "SNIPER_ENGINE_DRY_RUN")
	setBool(&cfg.Engine.Interactive, "SNIPER_ENGINE_INTERACTIVE")
	setStr(&cfg.Engine.SuggestionLog, "SNIPER_ENGINE_SUGGESTION_LOG")
	setInt(&cfg.Engine.MarketRefreshCycles, "SNIPER_ENGINE_MARKET_REFRESH_CYCLES")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SNIPER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SNIPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SNIPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SNIPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SNIPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SNIPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SNIPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SNIPER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SNIPER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SNIPER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SNIPER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SNIPER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SNIPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SNIPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SNIPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SNIPER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SNIPER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SNIPER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SNIPER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SNIPER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SNIPER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SNIPER_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "SNIPER_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "SNIPER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SNIPER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SNIPER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SNIPER_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "SNIPER_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SNIPER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SNIPER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SNIPER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "SNIPER_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimit, "SNIPER_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "SNIPER_SERVER_RATE_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SNIPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SNIPER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SNIPER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "SNIPER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
