package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/scholarscout/scraper/slug"
)

// Snapshot is the archived text of a fetched page
type Snapshot struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Archive stores page snapshots and returns the key they were saved under
type Archive interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) (string, error)
	ReadSnapshot(ctx context.Context, key string) (*Snapshot, error)
	DeleteSnapshot(ctx context.Context, key string) error
}

// Config contains storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage archives snapshots on the local filesystem
type Storage struct {
	config Config
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	if config.BasePath == "" {
		config.BasePath = DefaultConfig().BasePath
	}

	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{config: config}, nil
}

// snapshotDir returns snapshots/YYYY/MM for t
func snapshotDir(t time.Time) string {
	return path.Join("snapshots", fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())))
}

func encodeSnapshot(snap Snapshot) ([]byte, error) {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot writes snap as JSON and returns the path relative to the
// base directory
func (s *Storage) SaveSnapshot(ctx context.Context, snap Snapshot) (string, error) {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return "", err
	}

	dirPath := filepath.Join(s.config.BasePath, filepath.FromSlash(snapshotDir(time.Now())))
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	base := slug.GenerateWithFallback(slug.ForSnapshot(snap.Title, snap.URL), "snapshot")
	filePath, err := writeExclusive(dirPath, base, data)
	if err != nil {
		return "", err
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	return filepath.ToSlash(relPath), nil
}

// ReadSnapshot reads a snapshot saved by SaveSnapshot
func (s *Storage) ReadSnapshot(ctx context.Context, relPath string) (*Snapshot, error) {
	data, err := os.ReadFile(s.GetFullPath(relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return decodeSnapshot(data)
}

// DeleteSnapshot removes a snapshot; a missing file is not an error
func (s *Storage) DeleteSnapshot(ctx context.Context, relPath string) error {
	if err := os.Remove(s.GetFullPath(relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot file: %w", err)
	}
	return nil
}

// GetFullPath returns the full filesystem path for a relative path
func (s *Storage) GetFullPath(relPath string) string {
	return filepath.Join(s.config.BasePath, filepath.FromSlash(relPath))
}

// writeExclusive writes data to <base>.json in dir, appending -1, -2, ...
// to base until it finds a name nobody else has created
func writeExclusive(dir, base string, data []byte) (string, error) {
	for counter := 0; ; counter++ {
		name := base
		if counter > 0 {
			name = slug.MakeUnique(base, counter)
		}
		filePath := filepath.Join(dir, name+".json")

		f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create snapshot file: %w", err)
		}

		_, werr := f.Write(data)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return "", fmt.Errorf("failed to write snapshot file: %w", werr)
		}
		return filePath, nil
	}
}
