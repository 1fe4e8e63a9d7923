package persist

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore is a Store backed by a single YAML file on disk, mirroring
// the teacher's yaml.v3 load/save pattern. Writes are atomic: the new
// snapshot is written to a temp file in the same directory and renamed
// over the target, so a crash mid-write never corrupts the existing
// snapshot.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// WriteAll serializes snap as YAML and atomically replaces Path.
func (s *FileStore) WriteAll(snap Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persist: marshal snapshot: %w", err)
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("persist: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: rename temp file: %w", err)
	}
	return nil
}

// ReadAll loads the snapshot from Path. A missing file is reported as
// ok=false, err=nil (no snapshot yet, not a failure).
func (s *FileStore) ReadAll() (Snapshot, bool, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("persist: read snapshot: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("persist: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}
