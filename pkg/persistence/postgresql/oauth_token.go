package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
)

// OAuthTokenRepository reads token records written by the auth layer.
type OAuthTokenRepository struct {
	db *sql.DB
}

// NewOAuthTokenRepository creates a new OAuth token repository.
func NewOAuthTokenRepository(db *sql.DB) *OAuthTokenRepository {
	return &OAuthTokenRepository{db: db}
}

// GetByConfigEntry retrieves the token record for one config entry.
func (r *OAuthTokenRepository) GetByConfigEntry(ctx context.Context, configEntryID string) (*models.OAuthToken, error) {
	var (
		token        models.OAuthToken
		refreshToken sql.NullString
		expiresAt    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT
			config_entry_id
		  , provider
		  , access_token
		  , refresh_token
		  , expires_at
		  , created_at
		FROM oauth_tokens
		WHERE config_entry_id = $1
	`, configEntryID).Scan(
		&token.ConfigEntryID,
		&token.Provider,
		&token.AccessToken,
		&refreshToken,
		&expiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrOAuthTokenNotFound
		}

		return nil, fmt.Errorf("failed to fetch tokens for config entry %s: %w", configEntryID, err)
	}

	if refreshToken.Valid {
		token.RefreshToken = refreshToken.String
	}

	if expiresAt.Valid {
		token.ExpiresAt = expiresAt.Time
	}

	return &token, nil
}
