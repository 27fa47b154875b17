package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
	"github.com/homemesh/onboard/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"oauth_tokens", "flow_definitions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	require.NoError(t, db.Close())
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("onboard_test"),
			postgres.WithUsername("onboard"),
			postgres.WithPassword("onboard"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	p, err := postgresql.NewPersistence(ctx, slog.Default(), databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, p.Close(ctx))
		cancel()
	})

	return p, ctx, databaseURL
}

func discoveryDefinition(integration string) *models.FlowDefinition {
	return &models.FlowDefinition{
		Integration: integration,
		Type:        models.FlowTypeDiscovery,
		Steps: []*models.StepDefinition{
			{ID: "discover", Title: "Discover devices"},
			{ID: "configure", Title: "Configure", Schema: map[string]*models.FieldSpec{
				"name": {Type: models.FieldTypeString, Required: true},
			}},
			{ID: "confirm", Title: "Confirm"},
		},
		DiscoveryProtocols: map[string]map[string]any{
			"hub": {"base_url": "http://hub.local"},
		},
	}
}

func TestPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))
}

func TestFlowDefinitionRepository_CreateAndGet(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.FlowDefinitions()

	created, err := repo.Create(ctx, discoveryDefinition("hue"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version)
	assert.False(t, created.IsActive)

	found, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hue", found.Integration)
	assert.Equal(t, models.FlowTypeDiscovery, found.Type)
	require.Len(t, found.Steps, 3)
	assert.Equal(t, "discover", found.Steps[0].ID)
	require.NotNil(t, found.Steps[1].Schema["name"])
	assert.True(t, found.Steps[1].Schema["name"].Required)
	assert.Equal(t, "http://hub.local", found.DiscoveryProtocols["hub"]["base_url"])

	second, err := repo.Create(ctx, discoveryDefinition("hue"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestFlowDefinitionRepository_ActivateIsExclusive(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.FlowDefinitions()

	v1, err := repo.Create(ctx, discoveryDefinition("hue"))
	require.NoError(t, err)
	v2, err := repo.Create(ctx, discoveryDefinition("hue"))
	require.NoError(t, err)

	_, err = repo.GetActive(ctx, "hue")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrNoActiveDefinition)

	require.NoError(t, repo.Activate(ctx, v1.ID))
	require.NoError(t, repo.Activate(ctx, v2.ID))

	active, err := repo.GetActive(ctx, "hue")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)

	previous, err := repo.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.False(t, previous.IsActive)
}

func TestFlowDefinitionRepository_ConcurrentActivation(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.FlowDefinitions()

	versions := make([]*models.FlowDefinition, 0, 4)

	for range 4 {
		def, err := repo.Create(ctx, discoveryDefinition("hue"))
		require.NoError(t, err)

		versions = append(versions, def)
	}

	var wg sync.WaitGroup
	for _, def := range versions {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, repo.Activate(ctx, def.ID))
		}()
	}

	wg.Wait()

	all, err := repo.ListByIntegration(ctx, "hue")
	require.NoError(t, err)
	require.Len(t, all, 4)

	activeCount := 0

	for _, def := range all {
		if def.IsActive {
			activeCount++
		}
	}

	assert.Equal(t, 1, activeCount, "the partial unique index admits exactly one active row")
}

func TestFlowDefinitionRepository_UpdateAndDelete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.FlowDefinitions()

	created, err := repo.Create(ctx, discoveryDefinition("hue"))
	require.NoError(t, err)

	updated, err := repo.Update(ctx, created.ID, map[string]any{"is_default": true})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)

	_, err = repo.Update(ctx, created.ID, map[string]any{"steps": []any{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrImmutableVersion)

	require.NoError(t, repo.Activate(ctx, created.ID))

	err = repo.Delete(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, persistence.IsVersionConflict(err))

	spare, err := repo.Create(ctx, discoveryDefinition("hue"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, spare.ID))

	_, err = repo.GetByID(ctx, spare.ID)
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func TestOAuthTokenRepository_GetByConfigEntry(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)
	repo := p.OAuthTokens()

	_, err := repo.GetByConfigEntry(ctx, "entry-1")
	require.Error(t, err)
	assert.True(t, persistence.IsOAuthTokenNotFound(err))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { require.NoError(t, db.Close()) }()

	_, err = db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (config_entry_id, provider, access_token, refresh_token)
		VALUES ('entry-1', 'nest', 'at-secret', 'rt-secret')
	`)
	require.NoError(t, err)

	token, err := repo.GetByConfigEntry(ctx, "entry-1")
	require.NoError(t, err)
	assert.Equal(t, "nest", token.Provider)
	assert.Equal(t, "at-secret", token.AccessToken)
	assert.Equal(t, "rt-secret", token.RefreshToken)
	assert.False(t, token.CreatedAt.IsZero())
}
