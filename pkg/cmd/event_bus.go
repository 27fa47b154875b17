package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/homemesh/onboard/pkg/channels/gochannel"
	"github.com/homemesh/onboard/pkg/channels/kafka"
	"github.com/homemesh/onboard/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider. The
// in-process gochannel bus is the default for single-binary deployments.
func NewEventBus(provider, kafkaBrokers string, logger *slog.Logger) eventbus.EventBus {
	pub, sub, err := createChannel(provider, kafkaBrokers, logger)
	if err != nil {
		panic(fmt.Errorf("failed to create %s pub/sub: %w", provider, err))
	}

	return eventbus.NewWatermillEventBus(pub, sub)
}

// NewBusSubscriber creates a standalone subscriber for the device announcement
// stream. Only the Kafka provider carries announcements from other processes,
// so anything else yields nil and the bus discovery protocol stays unregistered.
func NewBusSubscriber(provider, kafkaBrokers string, logger *slog.Logger) message.Subscriber {
	if provider != "kafka" {
		return nil
	}

	_, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "onboard-discovery", kafkaBrokers)
	if err != nil {
		panic(fmt.Errorf("failed to create Kafka announcement subscriber: %w", err))
	}

	return sub
}

func createChannel(provider, kafkaBrokers string, logger *slog.Logger) (message.Publisher, message.Subscriber, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		return kafka.CreateChannel(wmLogger, "onboard", kafkaBrokers)
	case "", "gochannel":
		return gochannel.CreateChannel(wmLogger)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
