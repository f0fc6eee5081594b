package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/predyx-labs/predyxd/internal/blob/s3"
	"github.com/predyx-labs/predyxd/internal/cache/redis"
	"github.com/predyx-labs/predyxd/internal/chain"
	"github.com/predyx-labs/predyxd/internal/config"
	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/indexer"
	"github.com/predyx-labs/predyxd/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore  domain.MarketStore
	QuoteStore   domain.QuoteStore
	DepositStore domain.DepositStore

	// Caches
	MarketCache domain.MarketCache
	PoolCache   domain.PoolCache
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Chain access (nil in server mode: quotes then serve cached snapshots)
	ChainClient *chain.Client
	ChainReader *chain.Reader

	// Indexer (nil in server mode)
	Indexer *indexer.Client

	// Blob archival (nil unless s3.enabled)
	QuoteArchiver *s3blob.ArchiveImpl
}

// needsChain returns true for modes that read pool state from the contracts.
func needsChain(mode string) bool {
	switch mode {
	case "sync", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.QuoteStore = postgres.NewQuoteStore(pool)
	deps.DepositStore = postgres.NewDepositStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.PoolCache = redis.NewPoolCache(redisClient)
	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Chain + indexer (sync modes only) ---
	if needsChain(mode) {
		chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain: %w", err)
		}
		closers = append(closers, chainClient.Close)
		deps.ChainClient = chainClient

		reader, err := chain.NewReader(chainClient, cfg.Chain.RouterAddress)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain reader: %w", err)
		}
		deps.ChainReader = reader

		deps.Indexer = indexer.NewClient(cfg.Indexer.URL, cfg.Indexer.APIKey)
	}

	// --- S3 quote archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.QuoteArchiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			postgres.NewQuoteStore(pool),
		)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("mode", mode),
		slog.Bool("chain", deps.ChainReader != nil),
		slog.Bool("archive", deps.QuoteArchiver != nil),
	)

	return deps, cleanup, nil
}
