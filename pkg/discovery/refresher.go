package discovery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/robfig/cron/v3"
)

// Refresher periodically re-runs discovery for registered integrations so the
// cache stays warm between user-initiated scans. One cron schedule drives all
// registered integrations.
type Refresher struct {
	aggregator *Aggregator
	logger     *slog.Logger
	cron       *cron.Cron

	mu      sync.Mutex
	targets map[string]*models.FlowDefinition // integration -> active definition
}

func NewRefresher(aggregator *Aggregator, logger *slog.Logger) *Refresher {
	return &Refresher{
		aggregator: aggregator,
		logger:     logger,
		cron:       cron.New(),
		targets:    make(map[string]*models.FlowDefinition),
	}
}

// Track registers an integration for periodic refresh. Re-tracking an
// integration replaces its definition.
func (r *Refresher) Track(integration string, def *models.FlowDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets[integration] = def
}

// Untrack stops refreshing an integration.
func (r *Refresher) Untrack(integration string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.targets, integration)
}

// Start schedules the refresh job with the given cron expression and starts
// the scheduler.
func (r *Refresher) Start(ctx context.Context, schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		r.refreshAll(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "discovery refresher started", "schedule", schedule)

	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Refresher) refreshAll(ctx context.Context) {
	r.mu.Lock()
	targets := make(map[string]*models.FlowDefinition, len(r.targets))
	for integration, def := range r.targets {
		targets[integration] = def
	}
	r.mu.Unlock()

	for integration, def := range targets {
		devices, err := r.aggregator.Refresh(ctx, integration, def)
		if err != nil {
			r.logger.WarnContext(ctx, "scheduled discovery refresh failed", "integration", integration, "error", err)

			continue
		}

		r.logger.DebugContext(ctx, "scheduled discovery refresh complete",
			"integration", integration, "devices", len(devices))
	}
}
