package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSink stores objects under a local directory.
type FileSink struct {
	dir string
}

var _ Sink = (*FileSink)(nil)

// NewFileSink constructs a sink rooted at dir.
func NewFileSink(dir string) *FileSink { return &FileSink{dir: dir} }

// Put writes body to dir/key, creating parent directories.
func (s *FileSink) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(key))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("export: bad object key %q", key)
	}
	full := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return "", fmt.Errorf("export: mkdir: %w", err)
	}
	if err := os.WriteFile(full, body, 0o600); err != nil {
		return "", fmt.Errorf("export: write: %w", err)
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		abs = full
	}
	return "file://" + filepath.ToSlash(abs), nil
}
