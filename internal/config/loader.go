package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PREDYX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PREDYX_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "PREDYX_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "PREDYX_CHAIN_ID")
	setStr(&cfg.Chain.RouterAddress, "PREDYX_CHAIN_ROUTER_ADDRESS")
	setStr(&cfg.Chain.StakeToken, "PREDYX_CHAIN_STAKE_TOKEN")
	setStr(&cfg.Chain.GovToken, "PREDYX_CHAIN_GOV_TOKEN")

	// ── Indexer ──
	setStr(&cfg.Indexer.URL, "PREDYX_INDEXER_URL")
	setStr(&cfg.Indexer.APIKey, "PREDYX_INDEXER_API_KEY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PREDYX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PREDYX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDYX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDYX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDYX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDYX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDYX_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDYX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDYX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PREDYX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PREDYX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDYX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDYX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDYX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDYX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDYX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PREDYX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PREDYX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDYX_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDYX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDYX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDYX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PREDYX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PREDYX_S3_FORCE_PATH_STYLE")

	// ── Sync ──
	setDuration(&cfg.Sync.Interval, "PREDYX_SYNC_INTERVAL")
	setDuration(&cfg.Sync.PoolInterval, "PREDYX_SYNC_POOL_INTERVAL")
	setInt(&cfg.Sync.BatchSize, "PREDYX_SYNC_BATCH_SIZE")
	setInt(&cfg.Sync.QuoteRetentionDays, "PREDYX_SYNC_QUOTE_RETENTION_DAYS")
	setDuration(&cfg.Sync.ArchiveInterval, "PREDYX_SYNC_ARCHIVE_INTERVAL")

	// ── Pricing ──
	setInt64(&cfg.Pricing.DefaultFeeBps, "PREDYX_PRICING_DEFAULT_FEE_BPS")
	setInt64(&cfg.Pricing.DefaultTimeDecayBps, "PREDYX_PRICING_DEFAULT_TIME_DECAY_BPS")
	setInt(&cfg.Pricing.SnapshotMaxAgeSec, "PREDYX_PRICING_SNAPSHOT_MAX_AGE_SEC")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PREDYX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PREDYX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDYX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PREDYX_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "PREDYX_MODE")
	setStr(&cfg.LogLevel, "PREDYX_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
