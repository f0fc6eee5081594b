package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predyx-labs/predyxd/internal/pipeline"
	"github.com/predyx-labs/predyxd/internal/server"
	"github.com/predyx-labs/predyxd/internal/server/handler"
	"github.com/predyx-labs/predyxd/internal/server/ws"
	"github.com/predyx-labs/predyxd/internal/service"
)

// buildServices constructs the service layer shared by all modes.
func (a *App) buildServices(deps *Dependencies) (*service.MarketService, *service.QuoteService) {
	marketSvc := service.NewMarketService(
		deps.MarketStore, deps.DepositStore, deps.MarketCache, deps.SignalBus, a.logger,
	)

	// A typed-nil reader must not leak into the interface: a nil SnapshotReader
	// tells the quote service to fall back to cached snapshots.
	var reader service.SnapshotReader
	if deps.ChainReader != nil {
		reader = deps.ChainReader
	}

	quoteSvc := service.NewQuoteService(
		marketSvc, deps.QuoteStore, deps.PoolCache, deps.PriceCache,
		reader, deps.SignalBus, a.logger,
		time.Duration(a.cfg.Pricing.SnapshotMaxAgeSec)*time.Second,
	)

	return marketSvc, quoteSvc
}

// startServer adds the HTTP server and WebSocket hub to the errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, marketSvc *service.MarketService, quoteSvc *service.QuoteService) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(),
		Status: handler.NewStatusHandler(a.cfg.Mode, a.cfg.Chain.ChainID, startedAt, marketSvc, a.logger),
		Market: handler.NewMarketHandler(marketSvc, quoteSvc, a.logger),
		Quote:  handler.NewQuoteHandler(quoteSvc, a.logger),
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start(ctx)
	})
}

// startPipeline adds the sync pipeline (markets, pools, archival) to the
// errgroup.
func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies, marketSvc *service.MarketService) {
	marketSync := pipeline.NewMarketSync(
		marketSvc, deps.Indexer, deps.ChainClient, a.cfg.Sync.BatchSize, a.logger,
	)
	poolRefresher := pipeline.NewPoolRefresher(
		marketSvc, deps.ChainReader, deps.PoolCache, deps.PriceCache, deps.SignalBus, a.logger,
	)

	var archiver *pipeline.Archiver
	if deps.QuoteArchiver != nil {
		archiver = pipeline.NewArchiver(deps.QuoteArchiver, a.cfg.Sync.QuoteRetentionDays, a.logger)
	}

	orch := pipeline.NewOrchestrator(
		marketSync, poolRefresher, archiver,
		a.cfg.Sync.Interval.Duration,
		a.cfg.Sync.PoolInterval.Duration,
		a.cfg.Sync.ArchiveInterval.Duration,
		a.logger,
	)

	g.Go(func() error {
		return orch.Run(ctx)
	})
}

// ServerMode serves the REST API and WebSocket hub without any background
// syncing. Quotes are priced against cached pool snapshots.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	marketSvc, quoteSvc := a.buildServices(deps)
	a.startServer(ctx, g, deps, marketSvc, quoteSvc)
	return g.Wait()
}

// SyncMode runs only the background pipeline: market sync, pool refresh, and
// quote archival. No HTTP endpoints are exposed.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	g, ctx := errgroup.WithContext(ctx)
	marketSvc, _ := a.buildServices(deps)
	a.startPipeline(ctx, g, deps, marketSvc)
	return g.Wait()
}

// FullMode runs the pipeline and the HTTP server in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	marketSvc, quoteSvc := a.buildServices(deps)
	a.startPipeline(ctx, g, deps, marketSvc)
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, marketSvc, quoteSvc)
	}
	return g.Wait()
}
