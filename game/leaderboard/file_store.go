package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBlobStore implements BlobStore with one JSON file per key
type FileBlobStore struct {
	dir string
}

// NewFileBlobStore creates a file-based store rooted at dir
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	// Create the directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create leaderboard directory: %w", err)
	}

	return &FileBlobStore{dir: dir}, nil
}

// LoadBlob reads the blob stored under key
func (fs *FileBlobStore) LoadBlob(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(fs.getFilePath(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrBlobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read leaderboard file: %w", err)
	}
	return string(data), nil
}

// SaveBlob writes the blob through a temporary file so readers never see
// a partial write
func (fs *FileBlobStore) SaveBlob(_ context.Context, key, blob string) error {
	tmp, err := os.CreateTemp(fs.dir, ".leaderboard-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write leaderboard file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write leaderboard file: %w", err)
	}
	if err := os.Rename(tmpName, fs.getFilePath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace leaderboard file: %w", err)
	}
	return nil
}

// Delete removes the blob stored under key
func (fs *FileBlobStore) Delete(key string) error {
	if !fs.Exists(key) {
		return ErrBlobNotFound
	}
	if err := os.Remove(fs.getFilePath(key)); err != nil {
		return fmt.Errorf("failed to remove leaderboard file: %w", err)
	}
	return nil
}

// ListKeys returns every stored key
func (fs *FileBlobStore) ListKeys() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys, nil
}

// Exists checks if a blob file exists for key
func (fs *FileBlobStore) Exists(key string) bool {
	_, err := os.Stat(fs.getFilePath(key))
	return err == nil
}

// getFilePath returns the file path for a key. Path separators in the key
// are replaced so a key can never escape the store directory.
func (fs *FileBlobStore) getFilePath(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(fs.dir, safe+".json")
}
