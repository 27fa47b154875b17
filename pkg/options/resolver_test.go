package options

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/homemesh/onboard/pkg/log"
	"github.com/homemesh/onboard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dynamicField(endpoint string, params ...string) *models.FieldSpec {
	return &models.FieldSpec{
		Type: models.FieldTypeSelect,
		DynamicOptions: &models.DynamicOptionsSource{
			Endpoint: endpoint,
			Params:   params,
		},
	}
}

func TestResolve_ReturnsOrderedOptions(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode([]models.Option{
			{Label: "Living Room", Value: "living_room"},
			{Label: "Kitchen", Value: "kitchen"},
		})
	}))
	defer server.Close()

	resolver := NewResolver(log.WithModule("test"))

	opts, err := resolver.Resolve(t.Context(), dynamicField(server.URL, "brand"), Context{
		Integration: "hue",
		Field:       "room",
		FormValues:  map[string]any{"brand": "philips", "secret": "never-sent"},
	})
	require.NoError(t, err)

	require.Len(t, opts, 2)
	assert.Equal(t, "Living Room", opts[0].Label, "source order is preserved")
	assert.Equal(t, "philips", received["brand"])
	assert.NotContains(t, received, "secret", "only declared params are forwarded")
	assert.Equal(t, "hue", received["integration"])
}

func TestResolve_Unreachable(t *testing.T) {
	resolver := NewResolver(log.WithModule("test"))

	_, err := resolver.Resolve(t.Context(), dynamicField("http://127.0.0.1:1/options"), Context{Field: "room"})
	assert.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolve_UnbuildableRequest(t *testing.T) {
	resolver := NewResolver(log.WithModule("test"))

	field := dynamicField("http://localhost/options")
	field.DynamicOptions.Method = "NOT A METHOD"

	_, err := resolver.Resolve(t.Context(), field, Context{Field: "room"})
	assert.ErrorIs(t, err, ErrResolutionFailed,
		"request construction failures map like every other resolver failure")
}

func TestResolve_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"}`))
	}))
	defer server.Close()

	resolver := NewResolver(log.WithModule("test"))

	_, err := resolver.Resolve(t.Context(), dynamicField(server.URL), Context{Field: "room"})
	assert.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolve_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	resolver := NewResolver(log.WithModule("test"))

	_, err := resolver.Resolve(t.Context(), dynamicField(server.URL), Context{Field: "room"})
	assert.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolve_NoDynamicSource(t *testing.T) {
	resolver := NewResolver(log.WithModule("test"))

	_, err := resolver.Resolve(t.Context(), &models.FieldSpec{Type: models.FieldTypeSelect}, Context{Field: "room"})
	assert.ErrorIs(t, err, ErrResolutionFailed)
}
