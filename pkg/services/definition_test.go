package services_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/homemesh/onboard/pkg/events"
	"github.com/homemesh/onboard/pkg/mocks"
	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
	"github.com/homemesh/onboard/pkg/persistence/file"
	"github.com/homemesh/onboard/pkg/services"
)

func newDefinitionService(t *testing.T) (*services.Definition, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return services.NewDefinition(p, nil, slog.Default()), p
}

func validWizard(integration string) *models.FlowDefinition {
	return &models.FlowDefinition{
		Integration: integration,
		Type:        models.FlowTypeWizard,
		Steps: []*models.StepDefinition{
			{ID: "pick_integration", Title: "Pick integration"},
			{ID: "room", Title: "Room", Schema: map[string]*models.FieldSpec{
				"room": {Type: models.FieldTypeString, Required: true},
			}},
			{ID: "confirm", Title: "Confirm"},
		},
	}
}

func TestDefinition_CreateValidatesFirst(t *testing.T) {
	svc, _ := newDefinitionService(t)

	created, err := svc.Create(t.Context(), validWizard("hue"))
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)

	broken := validWizard("hue")
	broken.Type = "teleport"

	_, err = svc.Create(t.Context(), broken)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))

	var issues *services.ValidationIssuesError

	require.ErrorAs(t, err, &issues)
	assert.NotEmpty(t, issues.Issues)

	_, err = svc.Create(t.Context(), nil)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestDefinition_ActivateAndGetActive(t *testing.T) {
	svc, _ := newDefinitionService(t)

	v1, err := svc.Create(t.Context(), validWizard("hue"))
	require.NoError(t, err)
	v2, err := svc.Create(t.Context(), validWizard("hue"))
	require.NoError(t, err)

	_, err = svc.GetActive(t.Context(), "hue")
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))

	activated, err := svc.Activate(t.Context(), v2.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	active, err := svc.GetActive(t.Context(), "hue")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)

	previous, err := svc.Get(t.Context(), v1.ID)
	require.NoError(t, err)
	assert.False(t, previous.IsActive)
}

func TestDefinition_UpdateImmutableIsConflict(t *testing.T) {
	svc, _ := newDefinitionService(t)

	created, err := svc.Create(t.Context(), validWizard("hue"))
	require.NoError(t, err)

	updated, err := svc.Update(t.Context(), created.ID, map[string]any{"is_default": true})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)

	_, err = svc.Update(t.Context(), created.ID, map[string]any{"type": "oauth"})
	require.Error(t, err)
	assert.True(t, services.IsConflictError(err))

	_, err = svc.Update(t.Context(), created.ID, nil)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestDefinition_DeleteActiveIsConflict(t *testing.T) {
	svc, _ := newDefinitionService(t)

	created, err := svc.Create(t.Context(), validWizard("hue"))
	require.NoError(t, err)

	_, err = svc.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	err = svc.Delete(t.Context(), created.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrCannotDeleteActive)
	assert.True(t, services.IsConflictError(err))

	spare, err := svc.Create(t.Context(), validWizard("hue"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(t.Context(), spare.ID))

	_, err = svc.Get(t.Context(), spare.ID)
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestDefinition_PublishesLifecycleEvents(t *testing.T) {
	eventBus := new(mocks.MockEventBus)
	eventBus.On("Publish", mock.Anything, "hue", mock.MatchedBy(func(event events.DefinitionCreated) bool {
		return event.GetType() == events.DefinitionCreatedEvent
	})).Return(nil).Once()
	eventBus.On("Publish", mock.Anything, "hue", mock.MatchedBy(func(event events.DefinitionActivated) bool {
		return event.GetType() == events.DefinitionActivatedEvent
	})).Return(nil).Once()

	svc := services.NewDefinition(file.NewPersistence(t.TempDir()), eventBus, slog.Default())

	created, err := svc.Create(t.Context(), validWizard("hue"))
	require.NoError(t, err)

	_, err = svc.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	eventBus.AssertExpectations(t)
}

func TestDefinition_ValidateReportsIssues(t *testing.T) {
	svc, _ := newDefinitionService(t)

	assert.Empty(t, svc.Validate(validWizard("hue")))

	broken := validWizard("hue")
	broken.Steps = append(broken.Steps, &models.StepDefinition{ID: "room", Title: "Duplicate"})

	assert.NotEmpty(t, svc.Validate(broken))
	assert.NotEmpty(t, svc.Validate(nil))
}

func TestDefinition_HealthCheck(t *testing.T) {
	svc, _ := newDefinitionService(t)

	message, healthy := svc.HealthCheck(t.Context())
	assert.True(t, healthy, message)

	unhealthy := services.NewDefinition(nil, nil, slog.Default())

	_, healthy = unhealthy.HealthCheck(t.Context())
	assert.False(t, healthy)
}
