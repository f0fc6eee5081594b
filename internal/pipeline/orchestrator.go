package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the pipeline goroutines: market/deposit sync, pool
// refresh, and quote archival.
type Orchestrator struct {
	marketSync      *MarketSync
	poolRefresher   *PoolRefresher
	archiver        *Archiver
	syncInterval    time.Duration
	poolInterval    time.Duration
	archiveInterval time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil when the
// object-storage archive is disabled.
func NewOrchestrator(
	marketSync *MarketSync,
	poolRefresher *PoolRefresher,
	archiver *Archiver,
	syncInterval time.Duration,
	poolInterval time.Duration,
	archiveInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		marketSync:      marketSync,
		poolRefresher:   poolRefresher,
		archiver:        archiver,
		syncInterval:    syncInterval,
		poolInterval:    poolInterval,
		archiveInterval: archiveInterval,
		logger:          logger,
	}
}

// Run starts every sub-pipeline as a concurrent goroutine using an errgroup.
// Each goroutine respects ctx cancellation. If any goroutine returns a
// non-context error, the errgroup cancels the shared context and Run returns
// that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("sync_interval", o.syncInterval),
		slog.Duration("pool_interval", o.poolInterval),
		slog.Duration("archive_interval", o.archiveInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.logger.Info("starting market sync loop")
		err := o.marketSync.RunLoop(ctx, o.syncInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("market sync: %w", err)
	})

	g.Go(func() error {
		o.logger.Info("starting pool refresh loop")
		err := o.poolRefresher.RunLoop(ctx, o.poolInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("pool refresh: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver loop")
			err := o.archiver.RunLoop(ctx, o.archiveInterval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
