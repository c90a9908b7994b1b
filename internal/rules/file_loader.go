package rules

import (
	"context"
	"fmt"
	"os"
)

// FileLoader reads the rule document from disk. The file's modification time
// is the version.
type FileLoader struct {
	Path string
}

// Version implements Loader.
func (l FileLoader) Version(ctx context.Context) (int64, error) {
	info, err := os.Stat(l.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat rules file: %w", err)
	}
	return info.ModTime().UnixNano(), nil
}

// Fetch implements Loader.
func (l FileLoader) Fetch(ctx context.Context) ([]byte, int64, error) {
	v, err := l.Version(ctx)
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rules file: %w", err)
	}
	return data, v, nil
}
