package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Aggregator fans discovery out to every supported protocol handler
// concurrently, isolates per-protocol failures, merges and deduplicates the
// results, and caches the merged list per (integration, protocol set).
type Aggregator struct {
	registry *HandlerRegistry
	cache    Cache
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewAggregator(registry *HandlerRegistry, cache Cache, logger *slog.Logger, tracer trace.Tracer) *Aggregator {
	return &Aggregator{
		registry: registry,
		cache:    cache,
		logger:   logger,
		tracer:   tracer,
	}
}

// SupportedProtocols intersects the protocols the definition declares with
// the registered handlers that currently report availability.
func (a *Aggregator) SupportedProtocols(ctx context.Context, def *models.FlowDefinition) []string {
	supported := make([]string, 0, len(def.DiscoveryProtocols))

	for name := range def.DiscoveryProtocols {
		handler, err := a.registry.Get(name)
		if err != nil {
			a.logger.WarnContext(ctx, "declared discovery protocol has no handler", "protocol", name)

			continue
		}

		if handler.IsAvailable(ctx) {
			supported = append(supported, name)
		}
	}

	return supported
}

type protocolResult struct {
	protocol string
	devices  []models.DiscoveredDevice
	err      error
}

// Discover returns the merged, deduplicated device list for the integration,
// served from cache when a fresh entry exists. The call completes once every
// supported handler has finished or individually timed out, so its duration
// is bounded by the slowest handler's timeout, never the sum.
func (a *Aggregator) Discover(ctx context.Context, integration string, def *models.FlowDefinition) ([]models.DiscoveredDevice, error) {
	supported := a.SupportedProtocols(ctx, def)
	key := CacheKey(integration, supported)

	if devices, ok := a.cache.Get(ctx, key); ok {
		a.logger.DebugContext(ctx, "discovery cache hit", "integration", integration, "devices", len(devices))

		return devices, nil
	}

	devices, err := a.run(ctx, integration, supported, def)
	if err != nil {
		return nil, err
	}

	if err := a.cache.Set(ctx, key, devices); err != nil {
		a.logger.WarnContext(ctx, "failed to cache discovery result", "integration", integration, "error", err)
	}

	return devices, nil
}

// Refresh invalidates the cached entry for the integration's current protocol
// set and runs discovery again.
func (a *Aggregator) Refresh(ctx context.Context, integration string, def *models.FlowDefinition) ([]models.DiscoveredDevice, error) {
	supported := a.SupportedProtocols(ctx, def)
	key := CacheKey(integration, supported)

	if err := a.cache.Invalidate(ctx, key); err != nil {
		a.logger.WarnContext(ctx, "failed to invalidate discovery cache", "integration", integration, "error", err)
	}

	return a.Discover(ctx, integration, def)
}

func (a *Aggregator) run(ctx context.Context, integration string, protocols []string, def *models.FlowDefinition) ([]models.DiscoveredDevice, error) {
	ctx, span := otelhelper.StartSpan(ctx, a.tracer, "discovery.aggregate",
		attribute.String(otelhelper.IntegrationKey, integration),
		attribute.Int("onboard.discovery.protocols", len(protocols)),
	)
	defer span.End()

	results := make(chan protocolResult, len(protocols))

	var wg sync.WaitGroup

	for _, name := range protocols {
		handler, err := a.registry.Get(name)
		if err != nil {
			// SupportedProtocols already filtered unknown names.
			continue
		}

		wg.Add(1)

		go func(name string, handler ProtocolHandler) {
			defer wg.Done()

			results <- a.discoverOne(ctx, name, handler, def.DiscoveryProtocols[name])
		}(name, handler)
	}

	wg.Wait()
	close(results)

	merged := make([]models.DiscoveredDevice, 0)
	seen := make(map[string]bool)
	failed := 0

	for result := range results {
		if result.err != nil {
			failed++

			otelhelper.SetError(span, result.err, attribute.String(otelhelper.ProtocolKey, result.protocol))
			a.logger.WarnContext(ctx, "protocol discovery failed, continuing without it",
				"protocol", result.protocol, "error", result.err)

			continue
		}

		for _, device := range result.devices {
			key := device.DedupKey()
			if seen[key] {
				continue
			}

			seen[key] = true

			merged = append(merged, device)
		}
	}

	span.SetAttributes(
		attribute.Int("onboard.discovery.devices", len(merged)),
		attribute.Int("onboard.discovery.failed_protocols", failed),
	)
	a.logger.InfoContext(ctx, "discovery run complete",
		"integration", integration, "protocols", len(protocols), "failed", failed, "devices", len(merged))

	return merged, nil
}

// discoverOne runs a single handler under its own timeout and converts every
// failure mode, including panics, into a result the aggregate call absorbs.
// The handler runs in its own goroutine and the deadline is enforced here, so
// a handler that ignores its context cannot hold up the aggregate: at the
// deadline a timeout result is returned and the stray goroutine finishes into
// a buffered channel in the background.
func (a *Aggregator) discoverOne(ctx context.Context, name string, handler ProtocolHandler, config map[string]any) protocolResult {
	timeout := handler.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	protocolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan protocolResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- protocolResult{protocol: name, err: fmt.Errorf("protocol '%s' panicked: %v", name, r)}
			}
		}()

		devices, err := handler.Discover(protocolCtx, config)
		if err != nil {
			done <- protocolResult{protocol: name, err: fmt.Errorf("protocol '%s': %w", name, err)}

			return
		}

		done <- protocolResult{protocol: name, devices: devices}
	}()

	select {
	case result := <-done:
		if err := protocolCtx.Err(); err != nil && result.err == nil {
			return protocolResult{protocol: name, err: fmt.Errorf("protocol '%s': %w", name, err)}
		}

		return result
	case <-protocolCtx.Done():
		return protocolResult{protocol: name, err: fmt.Errorf("protocol '%s': %w", name, protocolCtx.Err())}
	}
}
