package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/pkg/logger"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStore writes each snapshot as <dir>/<name>.json. Writes go to a temp
// file first and are renamed into place.
type FileStore struct {
	dir   string
	mutex sync.Mutex
	log   *logger.Logger
}

func NewFileStore(dir string, log *logger.Logger) *FileStore {
	return &FileStore{dir: dir, log: log}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, unsafeNameChars.ReplaceAllString(name, "_")+".json")
}

func (s *FileStore) Load(ctx context.Context, name string) (model.Snapshot, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	snap, skipped, err := model.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Warn("Skipped unreadable snapshot entries", "path", s.path(name), "skipped", skipped)
	}
	return snap, nil
}

func (s *FileStore) Save(ctx context.Context, name string, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}
