package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store defines the persistence interface for the registry.
// Abstracted for testability (DIP).
type Store interface {
	Load() (*Registry, error)
	Save(r *Registry) error
}

// FileStore implements Store on a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the registry file location.
func (fs *FileStore) Path() string { return fs.path }

// Load reads the registry. A missing file yields an empty registry, not an
// error. Malformed JSON or an unsupported version wraps ErrParse.
func (fs *FileStore) Load() (*Registry, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, filepath.Base(fs.path), err)
	}
	if err := checkVersion(r.RegistryVersion); err != nil {
		return nil, err
	}
	if r.Projects == nil {
		r.Projects = make(map[string]Entry)
	}
	for name, e := range r.Projects {
		if e.ProjectName == "" {
			e.ProjectName = name
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		r.Projects[name] = e
	}
	return &r, nil
}

// Save validates r and atomically replaces the registry file. On a
// validation failure nothing is written. LastUpdated is stamped only when
// the write lands.
func (fs *FileStore) Save(r *Registry) error {
	if err := r.Validate(); err != nil {
		return err
	}

	doc := r.Clone()
	if doc.RegistryVersion == "" {
		doc.RegistryVersion = Version
	}
	doc.LastUpdated = timeNow().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	if err := writeAtomic(fs.path, append(data, '\n')); err != nil {
		return err
	}

	r.RegistryVersion = doc.RegistryVersion
	r.LastUpdated = doc.LastUpdated
	return nil
}

// writeAtomic writes data to a uniquely named temp file in the target
// directory and renames it over path. Concurrent writers never interleave;
// the last rename wins.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("setting registry permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replacing registry: %w", err)
	}
	return nil
}
