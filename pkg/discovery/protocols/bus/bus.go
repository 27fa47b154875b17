// Package bus discovers devices from announcement messages on a message-bus
// topic: devices on the bus periodically announce themselves, and a discovery
// run drains the announcements that arrive within the handler's window.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/homemesh/onboard/pkg/models"
)

const (
	ProtocolName   = "bus"
	defaultTimeout = 20 * time.Second
	defaultTopic   = "device-announcements"

	// quietPeriod ends a run early once the announcement stream dries up.
	quietPeriod = 2 * time.Second
)

// announcement is the wire format devices publish on the announcement topic.
type announcement struct {
	DeviceID    string            `json:"device_id"`
	Name        string            `json:"name"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Attributes  map[string]any    `json:"attributes,omitempty"`
}

type Handler struct {
	subscriber message.Subscriber
	topic      string
	timeout    time.Duration
	logger     *slog.Logger
}

type Option func(*Handler)

func WithTopic(topic string) Option {
	return func(h *Handler) {
		h.topic = topic
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		h.timeout = timeout
	}
}

func NewHandler(subscriber message.Subscriber, logger *slog.Logger, opts ...Option) *Handler {
	handler := &Handler{
		subscriber: subscriber,
		topic:      defaultTopic,
		timeout:    defaultTimeout,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(handler)
	}

	return handler
}

func (h *Handler) ProtocolName() string {
	return ProtocolName
}

func (h *Handler) Timeout() time.Duration {
	return h.timeout
}

func (h *Handler) IsAvailable(_ context.Context) bool {
	return h.subscriber != nil
}

// Discover collects announcements until the aggregator's deadline or until
// the stream stays quiet. A bus that cannot be subscribed to yields an empty
// list; duplicate announcements within one run collapse by device id.
func (h *Handler) Discover(ctx context.Context, _ map[string]any) ([]models.DiscoveredDevice, error) {
	messages, err := h.subscriber.Subscribe(ctx, h.topic)
	if err != nil {
		h.logger.WarnContext(ctx, "bus unreachable, reporting no devices", "topic", h.topic, "error", err)

		return []models.DiscoveredDevice{}, nil
	}

	now := time.Now().UTC()
	seen := make(map[string]bool)
	devices := make([]models.DiscoveredDevice, 0)

	for {
		quiet := time.NewTimer(quietPeriod)

		select {
		case <-ctx.Done():
			quiet.Stop()

			return devices, nil
		case <-quiet.C:
			return devices, nil
		case msg, ok := <-messages:
			quiet.Stop()

			if !ok {
				return devices, nil
			}

			msg.Ack()

			var ann announcement
			if err := json.Unmarshal(msg.Payload, &ann); err != nil {
				h.logger.WarnContext(ctx, "malformed device announcement, skipping", "error", err)

				continue
			}

			if ann.DeviceID == "" || seen[ann.DeviceID] {
				continue
			}

			seen[ann.DeviceID] = true

			devices = append(devices, models.DiscoveredDevice{
				ID:           ann.DeviceID,
				Name:         ann.Name,
				Protocol:     ProtocolName,
				Identifiers:  ann.Identifiers,
				Attributes:   ann.Attributes,
				DiscoveredAt: now,
			})
		}
	}
}
