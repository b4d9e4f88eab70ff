package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
)

// LocalSource reads the dataset from a flat file on disk.
type LocalSource struct {
	path string
}

// NewLocalSource creates a source for the given file path.
func NewLocalSource(path string) *LocalSource {
	return &LocalSource{path: path}
}

// Open opens the dataset file for reading.
func (s *LocalSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.path)
		}
		return nil, fmt.Errorf("failed to open dataset file %s: %w", s.path, err)
	}
	return f, nil
}

// Location returns the file path.
func (s *LocalSource) Location() string {
	return s.path
}
