// Package discovery aggregates heterogeneous device-discovery protocols:
// handlers are queried concurrently under per-protocol timeouts, results are
// merged and deduplicated, and the merged list is cached per integration.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/homemesh/onboard/pkg/models"
)

// ProtocolHandler is implemented once per discovery protocol. Discover must
// tolerate the backing system being unreachable by returning an empty list
// (or an error the aggregator isolates); it must never panic past the
// aggregator boundary.
type ProtocolHandler interface {
	ProtocolName() string
	IsAvailable(ctx context.Context) bool
	Discover(ctx context.Context, config map[string]any) ([]models.DiscoveredDevice, error)
	Timeout() time.Duration
}

// HandlerRegistry maps protocol names to their handlers. Populated at process
// start, read-only afterwards.
type HandlerRegistry struct {
	handlers map[string]ProtocolHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ProtocolHandler)}
}

func (r *HandlerRegistry) Register(handler ProtocolHandler) {
	r.handlers[handler.ProtocolName()] = handler
}

func (r *HandlerRegistry) Get(name string) (ProtocolHandler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("discovery protocol '%s' not registered", name)
	}

	return handler, nil
}

func (r *HandlerRegistry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}

	return names
}
