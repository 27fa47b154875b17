package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
)

// FlowDefinitionRepository handles flow-definition file operations. A single
// mutex serializes Create and Activate so version numbering and the
// one-active-per-integration rule survive concurrent callers in one process.
type FlowDefinitionRepository struct {
	root string
	mu   sync.Mutex
}

// NewFlowDefinitionRepository creates a new flow definition repository.
func NewFlowDefinitionRepository(root string) *FlowDefinitionRepository {
	return &FlowDefinitionRepository{root: root}
}

// mutableFields are the only definition fields Update may touch. Everything
// else is frozen once a version is created.
var mutableFields = map[string]bool{
	"is_default": true,
}

// Create stores a new definition version, assigning the next version number
// for the definition's integration.
func (dr *FlowDefinitionRepository) Create(ctx context.Context, def *models.FlowDefinition) (*models.FlowDefinition, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	existing, err := dr.listByIntegration(ctx, def.Integration)
	if err != nil {
		return nil, persistence.NewIntegrationError("Create", def.Integration, err)
	}

	version := 1
	for _, sibling := range existing {
		if sibling.Version >= version {
			version = sibling.Version + 1
		}
	}

	stored := *def
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	stored.Version = version
	stored.IsActive = false
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := dr.write(&stored); err != nil {
		return nil, persistence.NewDefinitionError("Create", stored.ID, err)
	}

	return &stored, nil
}

// GetByID retrieves a flow definition by its ID from the file system.
func (dr *FlowDefinitionRepository) GetByID(_ context.Context, id string) (*models.FlowDefinition, error) {
	def, err := dr.read(id)
	if err != nil {
		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	return def, nil
}

// GetActive returns the integration's active definition version.
func (dr *FlowDefinitionRepository) GetActive(ctx context.Context, integration string) (*models.FlowDefinition, error) {
	definitions, err := dr.listByIntegration(ctx, integration)
	if err != nil {
		return nil, persistence.NewIntegrationError("GetActive", integration, err)
	}

	for _, def := range definitions {
		if def.IsActive {
			return def, nil
		}
	}

	return nil, persistence.NewIntegrationError("GetActive", integration, persistence.ErrNoActiveDefinition)
}

// GetByIntegrationAndVersion returns one specific definition version.
func (dr *FlowDefinitionRepository) GetByIntegrationAndVersion(ctx context.Context, integration string, version int) (*models.FlowDefinition, error) {
	definitions, err := dr.listByIntegration(ctx, integration)
	if err != nil {
		return nil, persistence.NewIntegrationError("GetByIntegrationAndVersion", integration, err)
	}

	for _, def := range definitions {
		if def.Version == version {
			return def, nil
		}
	}

	return nil, persistence.NewIntegrationError("GetByIntegrationAndVersion", integration, persistence.ErrFlowDefinitionNotFound)
}

// ListByIntegration returns all versions for an integration, oldest first.
func (dr *FlowDefinitionRepository) ListByIntegration(ctx context.Context, integration string) ([]*models.FlowDefinition, error) {
	definitions, err := dr.listByIntegration(ctx, integration)
	if err != nil {
		return nil, persistence.NewIntegrationError("ListByIntegration", integration, err)
	}

	return definitions, nil
}

// Update changes mutable definition fields. Versioned content (type, steps,
// oauth provider, discovery protocols) is immutable once created; touching any
// such field fails with ErrImmutableVersion.
func (dr *FlowDefinitionRepository) Update(ctx context.Context, id string, fields map[string]any) (*models.FlowDefinition, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	def, err := dr.read(id)
	if err != nil {
		return nil, persistence.NewDefinitionError("Update", id, err)
	}

	for name, value := range fields {
		if !mutableFields[name] {
			return nil, persistence.NewDefinitionError("Update", id,
				fmt.Errorf("field %q: %w", name, persistence.ErrImmutableVersion))
		}

		switch name {
		case "is_default":
			isDefault, ok := value.(bool)
			if !ok {
				return nil, persistence.NewDefinitionError("Update", id,
					fmt.Errorf("field is_default must be a boolean, got %T", value))
			}

			def.IsDefault = isDefault
		}
	}

	def.UpdatedAt = time.Now().UTC()
	if err := dr.write(def); err != nil {
		return nil, persistence.NewDefinitionError("Update", id, err)
	}

	return def, nil
}

// Activate marks the given version active and clears the flag on every
// sibling version of the same integration. The mutex makes the multi-file
// update atomic with respect to other in-process activations.
func (dr *FlowDefinitionRepository) Activate(ctx context.Context, id string) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	target, err := dr.read(id)
	if err != nil {
		return persistence.NewDefinitionError("Activate", id, err)
	}

	siblings, err := dr.listByIntegration(ctx, target.Integration)
	if err != nil {
		return persistence.NewDefinitionError("Activate", id, err)
	}

	now := time.Now().UTC()

	for _, sibling := range siblings {
		if sibling.ID == id || !sibling.IsActive {
			continue
		}

		sibling.IsActive = false
		sibling.UpdatedAt = now

		if err := dr.write(sibling); err != nil {
			return persistence.NewDefinitionError("Activate", id, err)
		}
	}

	target.IsActive = true
	target.UpdatedAt = now

	if err := dr.write(target); err != nil {
		return persistence.NewDefinitionError("Activate", id, err)
	}

	return nil
}

// Delete removes a definition version. The active version cannot be deleted;
// deactivate it by activating a sibling first.
func (dr *FlowDefinitionRepository) Delete(_ context.Context, id string) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	def, err := dr.read(id)
	if err != nil {
		return persistence.NewDefinitionError("Delete", id, err)
	}

	if def.IsActive {
		return persistence.NewDefinitionError("Delete", id, persistence.ErrVersionConflict)
	}

	if err := os.Remove(dr.definitionPath(id)); err != nil && !os.IsNotExist(err) {
		return persistence.NewDefinitionError("Delete", id, fmt.Errorf("failed to delete definition file: %w", err))
	}

	return nil
}

func (dr *FlowDefinitionRepository) definitionPath(id string) string {
	return filepath.Clean(path.Join(dr.root, "definitions", id+".json"))
}

func (dr *FlowDefinitionRepository) read(id string) (*models.FlowDefinition, error) {
	body, err := os.ReadFile(dr.definitionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrFlowDefinitionNotFound
		}

		return nil, fmt.Errorf("failed to fetch definition %s: %w", id, err)
	}

	var def models.FlowDefinition
	if err := json.Unmarshal(body, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition %s: %w", id, err)
	}

	return &def, nil
}

func (dr *FlowDefinitionRepository) write(def *models.FlowDefinition) error {
	dir := path.Join(dr.root, "definitions")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create definitions directory: %w", err)
	}

	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal definition %s: %w", def.ID, err)
	}

	return os.WriteFile(dr.definitionPath(def.ID), data, 0600)
}

func (dr *FlowDefinitionRepository) listByIntegration(ctx context.Context, integration string) ([]*models.FlowDefinition, error) {
	dirFS := os.DirFS(path.Join(dr.root, "definitions"))

	jsonFiles, err := fs.Glob(dirFS, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list definition files: %w", err)
	}

	definitions := make([]*models.FlowDefinition, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		def, err := dr.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if def.Integration == integration {
			definitions = append(definitions, def)
		}
	}

	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Version < definitions[j].Version
	})

	return definitions, nil
}
