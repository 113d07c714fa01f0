package humor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type fileRecord struct {
	Humor *int `json:"humor"`
}

// FileBackend stores the level as {"humor": N} in a JSON file.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) (*FileBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("humor file path is required")
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Read(_ context.Context) (int, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("read %s: %w", b.path, err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCorrupt, b.path, err)
	}
	if rec.Humor == nil {
		return 0, fmt.Errorf("%w: %s: missing humor field", ErrCorrupt, b.path)
	}
	return *rec.Humor, nil
}

// Write replaces the file atomically: the record is written to a temp file in
// the same directory, synced, then renamed over the target.
func (b *FileBackend) Write(_ context.Context, level int) error {
	data, err := json.Marshal(fileRecord{Humor: &level})
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }
