package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/predyx-labs/predyxd/internal/metrics"
)

// QuoteArchiver moves aged quote rows to cold storage and reports how many
// were archived.
type QuoteArchiver interface {
	ArchiveQuotes(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver applies the quote retention policy on a fixed interval.
type Archiver struct {
	blobArchiver  QuoteArchiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver QuoteArchiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Run executes a single archive run against the retention cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	archived, err := a.blobArchiver.ArchiveQuotes(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving quotes before %v: %w", cutoff, err)
	}
	metrics.ArchivedQuotes.Add(float64(archived))

	a.logger.Info("archive run complete", slog.Int64("quotes_archived", archived))
	return nil
}

// RunLoop runs archive passes on a ticker until the context is cancelled. The
// first pass waits one full interval so restarts do not trigger immediate
// archival churn.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
