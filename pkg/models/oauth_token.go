package models

import "time"

// OAuthToken is the token record associated with one config entry. The flow
// engine reads it at the oauth_callback transition; issuing and refreshing
// tokens is the job of the surrounding auth layer.
type OAuthToken struct {
	ConfigEntryID string    `json:"config_entry_id"`
	Provider      string    `json:"provider"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
