package services

import (
	"context"
	"log/slog"

	"github.com/homemesh/onboard/pkg/discovery"
	"github.com/homemesh/onboard/pkg/eventbus"
	"github.com/homemesh/onboard/pkg/events"
	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
)

// Discovery runs aggregated device discovery for an integration's active
// definition and announces successful runs on the event bus.
type Discovery struct {
	aggregator  *discovery.Aggregator
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	refresher   *discovery.Refresher
	logger      *slog.Logger
}

// NewDiscovery creates a new discovery service. The publisher may be nil, in
// which case discovery events are skipped.
func NewDiscovery(aggregator *discovery.Aggregator, p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Discovery {
	return &Discovery{
		aggregator:  aggregator,
		persistence: p,
		publisher:   publisher,
		logger:      logger,
	}
}

// TrackWith registers a refresher. Every integration that discovers
// successfully is tracked so the scheduled refresh keeps its cache warm.
func (s *Discovery) TrackWith(refresher *discovery.Refresher) {
	s.refresher = refresher
}

func (s *Discovery) activeDefinition(ctx context.Context, integration string) (*models.FlowDefinition, error) {
	if integration == "" {
		return nil, ErrIntegrationRequired
	}

	return s.persistence.FlowDefinitions().GetActive(ctx, integration)
}

// SupportedProtocols returns the integration's declared protocols that have
// an available handler right now.
func (s *Discovery) SupportedProtocols(ctx context.Context, integration string) ([]string, error) {
	def, err := s.activeDefinition(ctx, integration)
	if err != nil {
		return nil, err
	}

	return s.aggregator.SupportedProtocols(ctx, def), nil
}

// Discover returns the merged device list for the integration, served from
// cache when fresh.
func (s *Discovery) Discover(ctx context.Context, integration string) ([]models.DiscoveredDevice, error) {
	def, err := s.activeDefinition(ctx, integration)
	if err != nil {
		return nil, err
	}

	devices, err := s.aggregator.Discover(ctx, integration, def)
	if err != nil {
		return nil, err
	}

	s.track(integration, def)
	s.announce(ctx, integration, s.aggregator.SupportedProtocols(ctx, def), devices)

	return devices, nil
}

// Refresh bypasses the cache and runs discovery again.
func (s *Discovery) Refresh(ctx context.Context, integration string) ([]models.DiscoveredDevice, error) {
	def, err := s.activeDefinition(ctx, integration)
	if err != nil {
		return nil, err
	}

	devices, err := s.aggregator.Refresh(ctx, integration, def)
	if err != nil {
		return nil, err
	}

	s.track(integration, def)
	s.announce(ctx, integration, s.aggregator.SupportedProtocols(ctx, def), devices)

	return devices, nil
}

func (s *Discovery) track(integration string, def *models.FlowDefinition) {
	if s.refresher == nil {
		return
	}

	s.refresher.Track(integration, def)
}

func (s *Discovery) announce(ctx context.Context, integration string, protocols []string, devices []models.DiscoveredDevice) {
	if s.publisher == nil {
		return
	}

	event := events.DevicesDiscovered{
		BaseEvent: events.NewBaseEvent(events.DevicesDiscoveredEvent, integration),
		Protocols: protocols,
		Devices:   devices,
	}

	if err := s.publisher.Publish(ctx, integration, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish discovery event",
			"integration", integration, "error", err)
	}
}
