// Package store provides durable persistence for completed applications.
package store

import (
	"context"

	"github.com/fencing-federation/intake-bot/internal/domain"
)

// Repository is the append-only application store.
type Repository interface {
	// SaveApplication inserts app as a new row and returns its ID. It never
	// overwrites or deduplicates; app.ID and app.CreatedAt are set on success.
	SaveApplication(ctx context.Context, app *domain.Application) (int64, error)

	// CountApplications returns the total number of rows ever saved.
	CountApplications(ctx context.Context) (int64, error)

	// ListApplications returns up to limit applications, newest first.
	ListApplications(ctx context.Context, limit int) ([]*domain.Application, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
