package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
)

// OAuthTokenRepository stores token records as one JSON file per config entry.
type OAuthTokenRepository struct {
	root string
}

// NewOAuthTokenRepository creates a new OAuth token repository.
func NewOAuthTokenRepository(root string) *OAuthTokenRepository {
	return &OAuthTokenRepository{root: root}
}

// GetByConfigEntry retrieves the token record for one config entry.
func (tr *OAuthTokenRepository) GetByConfigEntry(_ context.Context, configEntryID string) (*models.OAuthToken, error) {
	body, err := os.ReadFile(tr.tokenPath(configEntryID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrOAuthTokenNotFound
		}

		return nil, fmt.Errorf("failed to fetch tokens for config entry %s: %w", configEntryID, err)
	}

	var token models.OAuthToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tokens for config entry %s: %w", configEntryID, err)
	}

	return &token, nil
}

// Save writes a token record. The HTTP surface never exposes this; it exists
// for development setups and tests, where this package stands in for the
// external auth layer.
func (tr *OAuthTokenRepository) Save(_ context.Context, token *models.OAuthToken) error {
	if err := os.MkdirAll(path.Join(tr.root, "tokens"), 0750); err != nil {
		return fmt.Errorf("failed to create tokens directory: %w", err)
	}

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens for config entry %s: %w", token.ConfigEntryID, err)
	}

	return os.WriteFile(tr.tokenPath(token.ConfigEntryID), data, 0600)
}

func (tr *OAuthTokenRepository) tokenPath(configEntryID string) string {
	return filepath.Clean(path.Join(tr.root, "tokens", configEntryID+".json"))
}
