package models

import (
	"sort"
	"strings"
	"time"
)

// DiscoveredDevice is one protocol-scoped discovery result. Instances are
// created fresh on every discovery run and never mutated; a refresh supersedes
// the previous run's devices.
type DiscoveredDevice struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Protocol     string            `json:"protocol"`
	Identifiers  map[string]string `json:"identifiers,omitempty"` // stable cross-protocol identity, e.g. a MAC
	Attributes   map[string]any    `json:"attributes,omitempty"`
	DiscoveredAt time.Time         `json:"discovered_at"`
}

// DedupKey returns the identity used for cross-protocol deduplication: the
// canonicalized Identifiers map when present, else (protocol, id).
func (d *DiscoveredDevice) DedupKey() string {
	if len(d.Identifiers) > 0 {
		keys := make([]string, 0, len(d.Identifiers))
		for k := range d.Identifiers {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+strings.ToLower(d.Identifiers[k]))
		}

		return "ident:" + strings.Join(parts, ",")
	}

	return "proto:" + d.Protocol + ":" + d.ID
}
