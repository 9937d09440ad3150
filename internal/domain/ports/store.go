package ports

import (
	"context"
	"errors"

	"rate-cache-service/internal/domain/model"
)

// ErrSnapshotNotFound is returned by Load when nothing has been saved under the name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// RateStore persists the rate cache as a single named snapshot.
type RateStore interface {
	Load(ctx context.Context, name string) (model.Snapshot, error)
	Save(ctx context.Context, name string, snap model.Snapshot) error
}
