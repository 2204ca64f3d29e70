package transaction

import (
	"fmt"
	"os"
	"path/filepath"
)

// Archive keeps copies of uploaded notification images for audit purposes.
// Archiving is best effort; a failed write never fails the request.
type Archive interface {
	// Save stores an upload and returns the path/filename it was stored under
	Save(filename string, data []byte) (string, error)
}

// LocalArchive implements the Archive interface using the local filesystem
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a new LocalArchive instance
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	return &LocalArchive{
		basePath: basePath,
	}, nil
}

// Save stores an upload on disk
func (l *LocalArchive) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}
