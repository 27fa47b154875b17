// Package hub discovers devices through a home-automation hub's HTTP API by
// listing the hub's entity states and grouping them into devices by their
// device-level attributes.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/homemesh/onboard/pkg/models"
)

const (
	ProtocolName   = "hub"
	defaultTimeout = 15 * time.Second

	maxResponseBody = 4 << 20 // 4MB, hubs with many entities
)

// entityState is one entry of the hub's /api/states response.
type entityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

type Handler struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

type Option func(*Handler)

// WithTimeout overrides the per-discovery timeout the aggregator applies.
func WithTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		h.timeout = timeout
	}
}

func NewHandler(baseURL, token string, logger *slog.Logger, opts ...Option) *Handler {
	handler := &Handler{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: defaultTimeout,
		client:  &http.Client{},
		logger:  logger,
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

// IsAvailable pings the hub API root. A hub that is configured but offline
// reports unavailable so the aggregator leaves it out of the protocol set.
func (h *Handler) IsAvailable(ctx context.Context) bool {
	if h.baseURL == "" {
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := h.request(pingCtx, h.baseURL+"/api/")
	if err != nil {
		return false
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}

	defer h.closeBody(ctx, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Discover lists the hub's entity states and folds them into devices: states
// sharing a device identity (unique id, MAC, or device name attribute) become
// one device carrying its entity ids as attributes. An unreachable hub yields
// an empty list, never an error the aggregator has to absorb.
func (h *Handler) Discover(ctx context.Context, _ map[string]any) ([]models.DiscoveredDevice, error) {
	req, err := h.request(ctx, h.baseURL+"/api/states")
	if err != nil {
		return nil, fmt.Errorf("build states request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.WarnContext(ctx, "hub unreachable, reporting no devices", "error", err)

		return []models.DiscoveredDevice{}, nil
	}

	defer h.closeBody(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		h.logger.WarnContext(ctx, "hub returned unexpected status", "status", resp.StatusCode)

		return []models.DiscoveredDevice{}, nil
	}

	var states []entityState

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody))
	if err := decoder.Decode(&states); err != nil {
		return nil, fmt.Errorf("decode hub states: %w", err)
	}

	return h.groupIntoDevices(states), nil
}

func (h *Handler) groupIntoDevices(states []entityState) []models.DiscoveredDevice {
	now := time.Now().UTC()
	byIdentity := make(map[string]*models.DiscoveredDevice)
	devices := make([]models.DiscoveredDevice, 0, len(states))

	for _, state := range states {
		id, identifiers := deviceIdentity(state)
		if id == "" {
			continue
		}

		if existing, ok := byIdentity[id]; ok {
			existing.Attributes["entity_ids"] = append(existing.Attributes["entity_ids"].([]string), state.EntityID)

			continue
		}

		device := models.DiscoveredDevice{
			ID:          id,
			Name:        deviceName(state),
			Protocol:    ProtocolName,
			Identifiers: identifiers,
			Attributes: map[string]any{
				"entity_ids": []string{state.EntityID},
			},
			DiscoveredAt: now,
		}

		byIdentity[id] = &device
		devices = append(devices, device)
	}

	return devices
}

// deviceIdentity infers a stable device id from entity attributes, preferring
// explicit unique ids over MACs over the entity's own id.
func deviceIdentity(state entityState) (string, map[string]string) {
	if uniqueID, ok := state.Attributes["device_id"].(string); ok && uniqueID != "" {
		return uniqueID, map[string]string{"device_id": uniqueID}
	}

	if mac, ok := state.Attributes["mac"].(string); ok && mac != "" {
		return strings.ToLower(mac), map[string]string{"mac": strings.ToLower(mac)}
	}

	if state.EntityID != "" {
		return state.EntityID, nil
	}

	return "", nil
}

func deviceName(state entityState) string {
	if name, ok := state.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}

	return state.EntityID
}

func (h *Handler) request(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (h *Handler) closeBody(ctx context.Context, body io.ReadCloser) {
	if err := body.Close(); err != nil {
		h.logger.WarnContext(ctx, "failed to close hub response body", "error", err)
	}
}
