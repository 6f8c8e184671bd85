package indexer

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/flowindex/pkg/observability"
	"github.com/platinummonkey/flowindex/pkg/scanner"
)

// Scheduler triggers incremental runs on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	logger *observability.Logger
}

// NewScheduler schedules idx.Trigger on a standard five-field cron spec
func NewScheduler(ctx context.Context, idx *Indexer, spec string, logger *observability.Logger) (*Scheduler, error) {
	c := cron.New()
	logger = logger.WithField("component", "scheduler")

	_, err := c.AddFunc(spec, func() {
		logger.WithField("schedule", spec).Debug("Scheduled reindex")
		idx.Trigger(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reindex %q: %w", spec, err)
	}

	return &Scheduler{cron: c, spec: spec, logger: logger}, nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("schedule", s.spec).Info("Reindex schedule started")
}

// Stop stops the scheduler and waits for a running job to return
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WatchHandler adapts the indexer to scanner.Watcher notifications
func (idx *Indexer) WatchHandler() scanner.ChangeFunc {
	return func(ctx context.Context, changed []string) {
		idx.logger.WithField("files", len(changed)).Debug("Reindex after file changes")
		idx.Trigger(ctx)
	}
}
