package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// ProgressStore persists the single in-progress workout record.
//
// Persistence is best effort on the write path: a failed Save is logged
// and the session carries on in memory, a failed or corrupt Load
// degrades to "no saved progress", and Clear is idempotent. Callers
// never see storage errors.
type ProgressStore interface {
	Save(ctx context.Context, progress *WorkoutProgress)
	Load(ctx context.Context) *WorkoutProgress
	Clear(ctx context.Context)
}

// FileStore keeps the progress record as a single JSON file. Writes go
// through a temp file and a rename so a crash mid-write never leaves a
// truncated record behind.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("progress file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(_ context.Context, progress *WorkoutProgress) {
	if progress == nil {
		return
	}
	data, err := json.Marshal(progress)
	if err != nil {
		log.Errorf("progress store: marshal progress: %s", err)
		return
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		log.Errorf("progress store: write %s: %s", tmpPath, err)
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		log.Errorf("progress store: rename to %s: %s", s.path, err)
	}
}

func (s *FileStore) Load(_ context.Context) *WorkoutProgress {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Errorf("progress store: read %s: %s", s.path, err)
		}
		return nil
	}

	var progress WorkoutProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		log.Errorf("progress store: corrupt progress record in %s: %s", s.path, err)
		return nil
	}
	return &progress
}

func (s *FileStore) Clear(_ context.Context) {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Errorf("progress store: remove %s: %s", s.path, err)
	}
}
