// Package events defines event types and structures for onboarding lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/homemesh/onboard/pkg/models"
)

type EventType string

// Topic is the single stream all onboarding events are published to.
const Topic = "onboard.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Definition lifecycle events.
	DefinitionCreatedEvent   EventType = "definition.created"
	DefinitionActivatedEvent EventType = "definition.activated"

	// Flow lifecycle events.
	FlowCompletedEvent EventType = "flow.completed"

	// Discovery events.
	DevicesDiscoveredEvent EventType = "discovery.devices.discovered"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	Integration string         `json:"integration"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent builds the shared envelope for one event occurrence.
func NewBaseEvent(eventType EventType, integration string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		Integration: integration,
	}
}

type DefinitionCreated struct {
	BaseEvent

	DefinitionID string          `json:"definition_id"`
	Version      int             `json:"version"`
	FlowType     models.FlowType `json:"flow_type"`
}

func (e DefinitionCreated) GetType() EventType {
	return DefinitionCreatedEvent
}

type DefinitionActivated struct {
	BaseEvent

	DefinitionID string `json:"definition_id"`
	Version      int    `json:"version"`
}

func (e DefinitionActivated) GetType() EventType {
	return DefinitionActivatedEvent
}

type FlowCompleted struct {
	BaseEvent

	FlowID        string `json:"flow_id"`
	ConfigEntryID string `json:"config_entry_id,omitempty"`
}

func (e FlowCompleted) GetType() EventType {
	return FlowCompletedEvent
}

type DevicesDiscovered struct {
	BaseEvent

	Protocols []string                  `json:"protocols"`
	Devices   []models.DiscoveredDevice `json:"devices"`
	FromCache bool                      `json:"from_cache"`
}

func (e DevicesDiscovered) GetType() EventType {
	return DevicesDiscoveredEvent
}
