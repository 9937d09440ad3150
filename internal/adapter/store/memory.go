package store

import (
	"context"
	"sync"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
)

// MemoryStore keeps snapshots in process memory. Nothing survives a restart;
// it backs the "memory" driver and tests.
type MemoryStore struct {
	snapshots map[string]model.Snapshot
	mutex     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]model.Snapshot),
	}
}

func (s *MemoryStore) Load(ctx context.Context, name string) (model.Snapshot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap, found := s.snapshots[name]
	if !found {
		return nil, ports.ErrSnapshotNotFound
	}
	return snap.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, name string, snap model.Snapshot) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.snapshots[name] = snap.Clone()
	return nil
}
