package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dir copies exports into a local directory tree.
type Dir struct {
	Root string
	now  func() time.Time
}

func NewDir(root string) *Dir {
	return &Dir{Root: root, now: time.Now}
}

func (d *Dir) Archive(ctx context.Context, runID, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(d.Root, filepath.FromSlash(objectKey(d.now(), runID, name)))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("archive dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("archive write: %w", err)
	}
	return dst, nil
}
