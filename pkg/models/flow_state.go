package models

// FlowState is the caller-owned state of one in-progress onboarding run. The
// engine never stores it; every operation receives the accumulated state and
// returns a pure decision, so the caller (route layer, session store) stays
// the single owner of flow-instance storage.
type FlowState struct {
	FlowID         string                    `json:"flow_id"`
	Integration    string                    `json:"integration"`
	ConfigEntryID  string                    `json:"config_entry_id,omitempty"`
	CurrentStep    string                    `json:"current_step,omitempty"`
	Data           map[string]map[string]any `json:"data,omitempty"` // step id -> submitted fields
	SelectedDevice *DiscoveredDevice         `json:"selected_device,omitempty"`
}

// StepData returns the submitted data for one step, or nil.
func (s *FlowState) StepData(stepID string) map[string]any {
	if s == nil || s.Data == nil {
		return nil
	}

	return s.Data[stepID]
}
