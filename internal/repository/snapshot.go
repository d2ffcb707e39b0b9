package repository

import (
	"context"

	"rocketapi/internal/model"
)

// SnapshotRepository persists rocket state so it survives a restart.
// No business logic here, strictly persistence operations.
type SnapshotRepository interface {
	// Save upserts the rocket. A stored snapshot with a higher
	// LastMessageNumber is never overwritten by an older one.
	Save(ctx context.Context, rocket model.Rocket) error

	// LoadAll returns every stored rocket.
	LoadAll(ctx context.Context) ([]model.Rocket, error)

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}
