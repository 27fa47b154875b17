// Package file provides file-based persistence for flow definitions and
// OAuth token records. It is intended for development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/homemesh/onboard/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	definitionRepo *FlowDefinitionRepository
	tokenRepo      *OAuthTokenRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		definitionRepo: NewFlowDefinitionRepository(cleanRoot),
		tokenRepo:      NewOAuthTokenRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) FlowDefinitions() persistence.FlowDefinitionRepository {
	return fp.definitionRepo
}

func (fp *Persistence) OAuthTokens() persistence.OAuthTokenRepository {
	return fp.tokenRepo
}
