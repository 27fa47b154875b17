package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
)

// FlowDefinitionRepository handles flow-definition database operations.
type FlowDefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowDefinitionRepository creates a new flow definition repository.
func NewFlowDefinitionRepository(db *sql.DB, logger *slog.Logger) *FlowDefinitionRepository {
	return &FlowDefinitionRepository{db: db, logger: logger}
}

const definitionColumns = `
	id
  , integration
  , version
  , flow_type
  , steps
  , oauth_provider
  , discovery_protocols
  , is_active
  , is_default
  , created_at
  , updated_at
`

// Create stores a new definition version. The version number comes from a
// MAX(version)+1 read inside the insert transaction; the unique
// (integration, version) constraint catches concurrent creators, in which
// case the insert is retried once before giving up with ErrVersionConflict.
func (r *FlowDefinitionRepository) Create(ctx context.Context, def *models.FlowDefinition) (*models.FlowDefinition, error) {
	created, err := r.tryCreate(ctx, def)
	if err != nil && isRetryable(err) {
		r.logger.WarnContext(ctx, "retrying flow definition insert after version race",
			"integration", def.Integration)

		created, err = r.tryCreate(ctx, def)
	}

	if err != nil {
		if isRetryable(err) {
			err = persistence.ErrVersionConflict
		}

		return nil, persistence.NewIntegrationError("Create", def.Integration, err)
	}

	return created, nil
}

func (r *FlowDefinitionRepository) tryCreate(ctx context.Context, def *models.FlowDefinition) (*models.FlowDefinition, error) {
	stored := *def
	if stored.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate definition ID: %w", err)
		}

		stored.ID = id.String()
	}

	now := time.Now().UTC()
	stored.IsActive = false
	stored.CreatedAt = now
	stored.UpdatedAt = now

	stepsJSON, providerJSON, protocolsJSON, err := marshalDefinitionJSON(&stored)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) + 1 FROM flow_definitions WHERE integration = $1",
		stored.Integration,
	).Scan(&stored.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to assign definition version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO flow_definitions (id, integration, version, flow_type, steps,
			oauth_provider, discovery_protocols, is_active, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		stored.ID,
		stored.Integration,
		stored.Version,
		stored.Type,
		stepsJSON,
		providerJSON,
		protocolsJSON,
		stored.IsActive,
		stored.IsDefault,
		stored.CreatedAt,
		stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert flow definition: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit flow definition: %w", err)
	}

	return &stored, nil
}

// GetByID returns a flow definition by its ID.
func (r *FlowDefinitionRepository) GetByID(ctx context.Context, id string) (*models.FlowDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+definitionColumns+" FROM flow_definitions WHERE id = $1", id)

	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrFlowDefinitionNotFound
		}

		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	return def, nil
}

// GetActive returns the integration's active definition version.
func (r *FlowDefinitionRepository) GetActive(ctx context.Context, integration string) (*models.FlowDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+definitionColumns+" FROM flow_definitions WHERE integration = $1 AND is_active", integration)

	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrNoActiveDefinition
		}

		return nil, persistence.NewIntegrationError("GetActive", integration, err)
	}

	return def, nil
}

// GetByIntegrationAndVersion returns one specific definition version.
func (r *FlowDefinitionRepository) GetByIntegrationAndVersion(ctx context.Context, integration string, version int) (*models.FlowDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+definitionColumns+" FROM flow_definitions WHERE integration = $1 AND version = $2",
		integration, version)

	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrFlowDefinitionNotFound
		}

		return nil, persistence.NewIntegrationError("GetByIntegrationAndVersion", integration, err)
	}

	return def, nil
}

// ListByIntegration returns all versions for an integration, oldest first.
func (r *FlowDefinitionRepository) ListByIntegration(ctx context.Context, integration string) ([]*models.FlowDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+definitionColumns+" FROM flow_definitions WHERE integration = $1 ORDER BY version", integration)
	if err != nil {
		return nil, persistence.NewIntegrationError("ListByIntegration",
			integration, fmt.Errorf("failed to query flow definitions: %w", err))
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	definitions := make([]*models.FlowDefinition, 0)

	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, persistence.NewIntegrationError("ListByIntegration",
				integration, fmt.Errorf("failed to scan flow definition: %w", err))
		}

		definitions = append(definitions, def)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewIntegrationError("ListByIntegration",
			integration, fmt.Errorf("error iterating flow definitions: %w", err))
	}

	return definitions, nil
}

// Update changes mutable definition fields. Versioned content is immutable
// once created; touching any such field fails with ErrImmutableVersion.
func (r *FlowDefinitionRepository) Update(ctx context.Context, id string, fields map[string]any) (*models.FlowDefinition, error) {
	for name := range fields {
		if name != "is_default" {
			return nil, persistence.NewDefinitionError("Update", id,
				fmt.Errorf("field %q: %w", name, persistence.ErrImmutableVersion))
		}
	}

	if isDefaultValue, ok := fields["is_default"]; ok {
		isDefault, ok := isDefaultValue.(bool)
		if !ok {
			return nil, persistence.NewDefinitionError("Update", id,
				fmt.Errorf("field is_default must be a boolean, got %T", isDefaultValue))
		}

		result, err := r.db.ExecContext(ctx,
			"UPDATE flow_definitions SET is_default = $2, updated_at = $3 WHERE id = $1",
			id, isDefault, time.Now().UTC())
		if err != nil {
			return nil, persistence.NewDefinitionError("Update", id,
				fmt.Errorf("failed to update flow definition: %w", err))
		}

		affected, err := result.RowsAffected()
		if err == nil && affected == 0 {
			return nil, persistence.NewDefinitionError("Update", id, persistence.ErrFlowDefinitionNotFound)
		}
	}

	return r.GetByID(ctx, id)
}

// Activate marks the given version active and clears the flag on every
// sibling version of the same integration, in one transaction. The
// integration's rows are locked with SELECT ... FOR UPDATE so concurrent
// activations serialize; a serialization failure is retried once.
func (r *FlowDefinitionRepository) Activate(ctx context.Context, id string) error {
	err := r.tryActivate(ctx, id)
	if err != nil && isRetryable(err) {
		r.logger.WarnContext(ctx, "retrying flow definition activation after conflict", "definition_id", id)

		err = r.tryActivate(ctx, id)
	}

	if err != nil {
		if isRetryable(err) {
			err = persistence.ErrVersionConflict
		}

		return persistence.NewDefinitionError("Activate", id, err)
	}

	return nil
}

func (r *FlowDefinitionRepository) tryActivate(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var integration string

	err = tx.QueryRowContext(ctx,
		"SELECT integration FROM flow_definitions WHERE id = $1", id).Scan(&integration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrFlowDefinitionNotFound
		}

		return fmt.Errorf("failed to resolve definition integration: %w", err)
	}

	// Lock every version of the integration before flipping flags.
	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM flow_definitions WHERE integration = $1 FOR UPDATE", integration)
	if err != nil {
		return fmt.Errorf("failed to lock definition versions: %w", err)
	}

	if err = rows.Close(); err != nil {
		return fmt.Errorf("failed to close lock rows: %w", err)
	}

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		"UPDATE flow_definitions SET is_active = false, updated_at = $2 WHERE integration = $1 AND is_active",
		integration, now)
	if err != nil {
		return fmt.Errorf("failed to deactivate sibling versions: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE flow_definitions SET is_active = true, updated_at = $2 WHERE id = $1", id, now)
	if err != nil {
		return fmt.Errorf("failed to activate flow definition: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}

	return nil
}

// Delete removes a definition version. The active version cannot be deleted.
func (r *FlowDefinitionRepository) Delete(ctx context.Context, id string) error {
	def, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if def.IsActive {
		return persistence.NewDefinitionError("Delete", id, persistence.ErrVersionConflict)
	}

	_, err = r.db.ExecContext(ctx, "DELETE FROM flow_definitions WHERE id = $1 AND NOT is_active", id)
	if err != nil {
		return persistence.NewDefinitionError("Delete", id,
			fmt.Errorf("failed to delete flow definition: %w", err))
	}

	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation || pqErr.Code == pqSerializationFailure
	}

	return false
}

func marshalDefinitionJSON(def *models.FlowDefinition) (steps, provider, protocols []byte, err error) {
	steps, err = json.Marshal(def.Steps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal steps: %w", err)
	}

	if def.OAuthProvider != nil {
		provider, err = json.Marshal(def.OAuthProvider)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal oauth provider: %w", err)
		}
	}

	if def.DiscoveryProtocols != nil {
		protocols, err = json.Marshal(def.DiscoveryProtocols)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal discovery protocols: %w", err)
		}
	}

	return steps, provider, protocols, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*models.FlowDefinition, error) {
	var (
		def           models.FlowDefinition
		stepsJSON     []byte
		providerJSON  []byte
		protocolsJSON []byte
	)

	err := row.Scan(
		&def.ID,
		&def.Integration,
		&def.Version,
		&def.Type,
		&stepsJSON,
		&providerJSON,
		&protocolsJSON,
		&def.IsActive,
		&def.IsDefault,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepsJSON, &def.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if len(providerJSON) > 0 {
		if err := json.Unmarshal(providerJSON, &def.OAuthProvider); err != nil {
			return nil, fmt.Errorf("failed to unmarshal oauth provider: %w", err)
		}
	}

	if len(protocolsJSON) > 0 {
		if err := json.Unmarshal(protocolsJSON, &def.DiscoveryProtocols); err != nil {
			return nil, fmt.Errorf("failed to unmarshal discovery protocols: %w", err)
		}
	}

	return &def, nil
}
