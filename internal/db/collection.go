package db

import (
	"context"
	"errors"

	"github.com/ukydev/fleet-carsharing/internal/models"
)

var (
	// ErrSnapshotNotFound is returned by Load when nothing has been saved yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrInvalidSnapshotJSON is returned when stored snapshot data is malformed.
	ErrInvalidSnapshotJSON = errors.New("snapshot json is not valid")
)

// SnapshotStore persists the full fleet state between process runs.
type SnapshotStore interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snapshot models.Snapshot) error
	// Delete drops the stored snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context) error
}

// SchemaStore is implemented by stores that need their schema created before use.
type SchemaStore interface {
	EnsureSchema(ctx context.Context) error
}
