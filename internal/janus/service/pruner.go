package service

import (
	"context"
	"log/slog"
	"time"
)

// Prunable is a store that can drop rows older than a cutoff.
type Prunable interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneTarget names a store for the pruner's log lines.
type PruneTarget struct {
	Name  string
	Store Prunable
}

// Pruner runs a background goroutine that periodically deletes
// heartbeats and resolved lock commands older than the configured
// retention period. The access log is never a target.
type Pruner struct {
	targets   []PruneTarget
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       Clock

	cancel context.CancelFunc
	done   chan struct{}
}

// PrunerConfig controls retention behaviour.
type PrunerConfig struct {
	// RetentionDays is how many days of history to keep. Zero or negative
	// disables pruning entirely.
	RetentionDays int

	// IntervalHours is how often the prune job runs. Defaults to 6 if zero.
	IntervalHours int

	Now Clock
}

func NewPruner(cfg PrunerConfig, logger *slog.Logger, targets ...PruneTarget) *Pruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &Pruner{
		targets:   targets,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		now:       cfg.Now.orDefault(),
		done:      make(chan struct{}),
	}
}

// Start launches the background prune loop. It runs one prune
// immediately, then repeats on the configured interval. Cancel ctx or
// call Stop to shut it down.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("pruner: retention disabled (retention_days <= 0)")
		close(p.done)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("pruner: started",
		"retention", p.retention.String(),
		"interval", p.interval.String(),
		"targets", len(p.targets),
	)

	go p.loop(ctx)
}

// Stop signals the prune loop to exit and waits for it to finish.
func (p *Pruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *Pruner) loop(ctx context.Context) {
	defer close(p.done)

	p.PruneOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pruner: stopped")
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce runs one pass over every target and returns the total number
// of rows deleted. A failing target does not stop the others.
func (p *Pruner) PruneOnce(ctx context.Context) int64 {
	if p.retention <= 0 {
		return 0
	}
	cutoff := p.now().UTC().Add(-p.retention)

	var total int64
	for _, t := range p.targets {
		n, err := t.Store.PruneOlderThan(ctx, cutoff)
		if err != nil {
			if ctx.Err() != nil {
				return total
			}
			p.logger.Error("pruner: prune failed", "target", t.Name, "err", err)
			continue
		}
		if n > 0 {
			p.logger.Info("pruner: deleted old rows",
				"target", t.Name,
				"rows", n,
				"cutoff", cutoff.Format(time.RFC3339),
			)
		}
		total += n
	}
	return total
}
