package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"snigexport/pkg/arcgis"
	"snigexport/pkg/logger"
)

// Store manages the chunk checkpoint files of one layer export. Checkpoint
// paths are a pure function of (layer, chunk index); a file that exists and
// parses is proof that its chunk was fully fetched.
type Store struct {
	dir    string
	logger logger.Logger
}

// NewStore creates a checkpoint store rooted at <tmpDir>/<layerName>
func NewStore(tmpDir, layerName string) (*Store, error) {
	dir := filepath.Join(tmpDir, layerName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Store{
		dir:    dir,
		logger: logger.GetLogger(),
	}, nil
}

// Dir returns the checkpoint directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the checkpoint file path for a chunk index
func (s *Store) Path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("chunk_%d.geojson", index))
}

// Exists reports whether a checkpoint file exists for the chunk
func (s *Store) Exists(index int) bool {
	_, err := os.Stat(s.Path(index))
	return err == nil
}

// Load reads and parses the checkpoint for a chunk. It returns (nil, nil)
// when no checkpoint exists, and an error when the file exists but does
// not parse — the caller treats that chunk as not yet fetched.
func (s *Store) Load(index int) (*arcgis.FeatureCollection, error) {
	data, err := os.ReadFile(s.Path(index))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint %d: %w", index, err)
	}

	var fc arcgis.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("checkpoint %d is corrupt: %w", index, err)
	}

	return &fc, nil
}

// Save atomically persists the raw chunk response. Write goes to a
// temporary file first so an interrupted run never leaves a half-written
// checkpoint that would later pass the existence check.
func (s *Store) Save(index int, raw []byte) error {
	path := s.Path(index)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(raw); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint %d: %w", index, err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint %d: %w", index, err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint %d: %w", index, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint %d: %w", index, err)
	}

	s.logger.DebugWithFields("checkpoint saved", map[string]interface{}{
		"chunk": index,
		"path":  path,
	})

	return nil
}

// Clear removes the checkpoint files for the first count chunks and the
// directory itself if it ends up empty. Called only after a fully
// successful merge; failures are logged but never block the export.
func (s *Store) Clear(count int) {
	for i := 0; i < count; i++ {
		if err := os.Remove(s.Path(i)); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("chunk", i).Warn("failed to remove checkpoint")
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err == nil && len(entries) == 0 {
		if err := os.Remove(s.dir); err != nil {
			s.logger.WithError(err).Warn("failed to remove checkpoint directory")
		}
	}
}
