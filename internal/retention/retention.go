// Package retention prunes scans and their photos once they pass a configured
// age.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	robfigcron "github.com/robfig/cron/v3"
	"github.com/vbonduro/glowly/internal/domain"
	"github.com/vbonduro/glowly/internal/photostore"
)

const DefaultSchedule = "@daily"

type scanRepository interface {
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Scan, error)
	Delete(ctx context.Context, id int64) error
}

type Pruner struct {
	scans    scanRepository
	photoStg photostore.PhotoStore
	maxAge   time.Duration
	schedule robfigcron.Schedule
	now      func() time.Time
	logger   *slog.Logger
}

// NewPruner returns a pruner removing scans older than days. days <= 0
// disables pruning. schedule accepts five-field cron expressions and
// descriptors such as "@daily" or "@every 6h".
func NewPruner(scans scanRepository, photoStg photostore.PhotoStore, days int, schedule string, logger *slog.Logger) (*Pruner, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	parser := robfigcron.NewParser(
		robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow | robfigcron.Descriptor,
	)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		scans:    scans,
		photoStg: photoStg,
		maxAge:   time.Duration(days) * 24 * time.Hour,
		schedule: sched,
		now:      time.Now,
		logger:   logger,
	}, nil
}

func (p *Pruner) Enabled() bool { return p.maxAge > 0 }

// PruneOnce deletes every expired scan and returns how many were removed.
// A failure on one scan is logged and the rest are still attempted.
func (p *Pruner) PruneOnce(ctx context.Context) (int, error) {
	if !p.Enabled() {
		return 0, nil
	}
	cutoff := p.now().Add(-p.maxAge)
	expired, err := p.scans.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired scans: %w", err)
	}

	removed := 0
	for _, scan := range expired {
		if err := p.scans.Delete(ctx, scan.ID); err != nil {
			p.logger.Error("failed to delete expired scan", "scan_id", scan.ID, "error", err)
			continue
		}
		if err := p.photoStg.Delete(ctx, scan.StorageKey); err != nil && !errors.Is(err, photostore.ErrNotFound) {
			p.logger.Error("failed to delete expired photo", "storage_key", scan.StorageKey, "error", err)
		}
		removed++
	}
	return removed, nil
}

// Start runs PruneOnce on the schedule. Blocks until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	if !p.Enabled() {
		p.logger.Info("retention disabled")
		<-ctx.Done()
		return nil
	}

	c := robfigcron.New()
	c.Schedule(p.schedule, robfigcron.FuncJob(func() {
		n, err := p.PruneOnce(ctx)
		if err != nil {
			p.logger.Error("retention run failed", "error", err)
			return
		}
		p.logger.Info("retention run complete", "removed", n)
	}))
	c.Start()
	p.logger.Info("retention started", "max_age", p.maxAge)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
