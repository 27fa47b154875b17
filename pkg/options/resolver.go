// Package options resolves a field's selectable values from its declared
// dynamic-options source at request time.
package options

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/homemesh/onboard/pkg/models"
)

// ErrResolutionFailed indicates the declared source was unreachable or
// returned malformed data.
var ErrResolutionFailed = errors.New("dynamic options resolution failed")

const (
	defaultTimeout    = 10 * time.Second
	maxResponseBody   = 1 << 20 // 1MB
	defaultHTTPMethod = http.MethodPost
)

// Context carries the request-time inputs forwarded to the lookup endpoint.
type Context struct {
	Integration string
	Field       string
	FormValues  map[string]any
}

type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// Resolve calls the field's declared endpoint with the request context and
// decodes an ordered list of {label, value} options. The caller decides how
// to surface failures; this resolver always propagates them as
// ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context, field *models.FieldSpec, rctx Context) ([]models.Option, error) {
	if field == nil || field.DynamicOptions == nil {
		return nil, fmt.Errorf("field '%s' declares no dynamic options: %w", rctx.Field, ErrResolutionFailed)
	}

	source := field.DynamicOptions

	payload := map[string]any{
		"integration": rctx.Integration,
		"field":       rctx.Field,
	}

	// Only the declared params are forwarded, never the whole form.
	for _, param := range source.Params {
		if value, ok := rctx.FormValues[param]; ok {
			payload[param] = value
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode lookup payload: %w: %w", ErrResolutionFailed, err)
	}

	method := source.Method
	if method == "" {
		method = defaultHTTPMethod
	}

	req, err := http.NewRequestWithContext(ctx, method, source.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w: %w", ErrResolutionFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup '%s' unreachable: %w: %w", source.Endpoint, ErrResolutionFailed, err)
	}

	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.WarnContext(ctx, "failed to close options response body", "error", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("lookup '%s' returned status %d: %w", source.Endpoint, resp.StatusCode, ErrResolutionFailed)
	}

	var opts []models.Option

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody))
	if err := decoder.Decode(&opts); err != nil {
		return nil, fmt.Errorf("lookup '%s' returned malformed data: %w: %w", source.Endpoint, ErrResolutionFailed, err)
	}

	return opts, nil
}
