package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

const ext = ".json"

// Store implements ports.ArtifactStore using the local filesystem.
// Each dataset is a directory; each key is a JSON file, and namespaced keys
// ("periodogram/slopes") become subdirectories.
type Store struct {
	BasePath string
}

var _ ports.ArtifactStore = (*Store)(nil)

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".telemetry/datasets".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".telemetry", "datasets")
	}
	return &Store{BasePath: basePath}
}

// Dir returns the directory holding the dataset's keys. Absolute locators
// are used as is; relative ones are resolved against BasePath.
func (s *Store) Dir(ds domain.Dataset) string {
	loc := ds.Locator
	if loc == "" {
		loc = ds.ID
	}
	if filepath.IsAbs(loc) {
		return loc
	}
	return filepath.Join(s.BasePath, loc)
}

// Open returns a handle on the dataset directory. A missing directory is
// only created by the first Put: until then Keys reports it as unreadable,
// so a dataset whose storage vanished is not mistaken for an empty one.
func (s *Store) Open(ctx context.Context, ds domain.Dataset) (ports.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := s.Dir(ds)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to stat dataset directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("dataset storage %s is not a directory", dir)
	}
	return &handle{dir: dir}, nil
}

// Discover lists the dataset directories directly under BasePath. Creation
// time comes from a date-like directory name, else from its mtime.
func (s *Store) Discover(ctx context.Context) ([]domain.Dataset, error) {
	entries, err := os.ReadDir(s.BasePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	var out []domain.Dataset
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		created, ok := domain.CreatedFromName(e.Name())
		if !ok {
			info, err := e.Info()
			if err != nil {
				return nil, err
			}
			created = info.ModTime().UTC()
		}
		out = append(out, domain.Dataset{ID: e.Name(), Locator: e.Name(), Created: created, Valid: true})
	}
	return out, nil
}

type handle struct {
	dir string
}

func (h *handle) path(key string) (string, error) {
	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(h.dir, filepath.FromSlash(key)+ext), nil
}

func (h *handle) Get(ctx context.Context, key string) (domain.Array, error) {
	p, err := h.path(key)
	if err != nil {
		return domain.Array{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Array{}, domain.ErrKeyNotFound
		}
		return domain.Array{}, fmt.Errorf("failed to read %q: %w", key, err)
	}
	var arr domain.Array
	if err := json.Unmarshal(data, &arr); err != nil {
		return domain.Array{}, fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}
	return arr, nil
}

// Put writes the array atomically: temp file, fsync, rename.
func (h *handle) Put(ctx context.Context, key string, value domain.Array) error {
	destPath, err := h.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure key directory: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}

	// 1. Create Temp File on the same filesystem (required for atomic rename)
	tmpFile, err := os.CreateTemp(dir, "tmp-*"+ext+".partial")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	// 3. Fsync to ensure durability
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close File (cannot rename open file on Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Atomic Rename
	// On Windows, os.Rename fails if dest exists. We must remove it first.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (h *handle) Has(ctx context.Context, key string) (bool, error) {
	p, err := h.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %q: %w", key, err)
}

func (h *handle) Delete(ctx context.Context, key string) error {
	p, err := h.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Keys walks the dataset directory. Temp files of interrupted writes are skipped.
func (h *handle) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(h.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		rel, err := filepath.Rel(h.dir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(strings.TrimSuffix(rel, ext)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

func (h *handle) Close() error {
	return nil
}
