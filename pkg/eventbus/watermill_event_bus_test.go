package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homemesh/onboard/pkg/channels/gochannel"
	"github.com/homemesh/onboard/pkg/eventbus"
	"github.com/homemesh/onboard/pkg/events"
	"github.com/homemesh/onboard/pkg/models"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.DevicesDiscoveredEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	event := events.DevicesDiscovered{
		BaseEvent: events.NewBaseEvent(events.DevicesDiscoveredEvent, "hue"),
		Protocols: []string{"hub"},
		Devices: []models.DiscoveredDevice{
			{ID: "light-1", Protocol: "hub", Name: "Hue light"},
		},
	}
	require.NoError(t, bus.Publish(t.Context(), "hue", event))

	select {
	case got := <-received:
		discovered, ok := got.(*events.DevicesDiscovered)
		require.True(t, ok)
		assert.Equal(t, "hue", discovered.Integration)
		assert.Equal(t, []string{"hub"}, discovered.Protocols)
		require.Len(t, discovered.Devices, 1)
		assert.Equal(t, "light-1", discovered.Devices[0].ID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypeIsIgnored(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan any, 2)

	require.NoError(t, bus.Handle(events.DefinitionActivatedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "hue", events.FlowCompleted{
		BaseEvent: events.NewBaseEvent(events.FlowCompletedEvent, "hue"),
		FlowID:    "flow-1",
	}))
	require.NoError(t, bus.Publish(t.Context(), "hue", events.DefinitionActivated{
		BaseEvent:    events.NewBaseEvent(events.DefinitionActivatedEvent, "hue"),
		DefinitionID: "def-1",
		Version:      2,
	}))

	select {
	case got := <-received:
		activated, ok := got.(*events.DefinitionActivated)
		require.True(t, ok, "only the subscribed type reaches the handler")
		assert.Equal(t, 2, activated.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	assert.Empty(t, received)
}
