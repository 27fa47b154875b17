// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/homemesh/onboard/pkg/discovery"
	"github.com/homemesh/onboard/pkg/discovery/protocols/bus"
	"github.com/homemesh/onboard/pkg/discovery/protocols/hub"
	"github.com/homemesh/onboard/pkg/flow"
	"github.com/homemesh/onboard/pkg/persistence"
)

// NewFlowRegistry builds a registry with every built-in flow handler
// registered. The hybrid handler shares the OAuth handler so both resolve
// tokens through the same repository.
func NewFlowRegistry(logger *slog.Logger, p persistence.Persistence) *flow.Registry {
	registry := flow.NewRegistry(logger)

	oauthHandler := flow.NewOAuthHandler(p.OAuthTokens())

	registry.Register(flow.NewWizardHandler())
	registry.Register(oauthHandler)
	registry.Register(flow.NewDiscoveryHandler())
	registry.Register(flow.NewHybridHandler(oauthHandler))

	return registry
}

// NewProtocolRegistry builds the discovery protocol registry from the
// configured integrations. A handler is only registered when its transport is
// configured: the hub protocol needs a base URL, the bus protocol a
// subscriber.
func NewProtocolRegistry(logger *slog.Logger, hubURL, hubToken string, subscriber message.Subscriber) *discovery.HandlerRegistry {
	registry := discovery.NewHandlerRegistry()

	if hubURL != "" {
		registry.Register(hub.NewHandler(hubURL, hubToken, logger))
	}

	if subscriber != nil {
		registry.Register(bus.NewHandler(subscriber, logger))
	}

	return registry
}
