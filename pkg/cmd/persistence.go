package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/homemesh/onboard/pkg/persistence"
	"github.com/homemesh/onboard/pkg/persistence/file"
	"github.com/homemesh/onboard/pkg/persistence/postgresql"
)

// NewPersistence picks the persistence backend from the database URL scheme.
// Postgres URLs get the SQL backend, anything else is treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
