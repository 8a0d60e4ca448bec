// Package archive keeps a copy of every raw export that was imported.
package archive

import (
	"context"
	"path"
	"path/filepath"
	"time"
)

// Archiver stores the raw bytes of an imported file and returns where they
// went.
type Archiver interface {
	Archive(ctx context.Context, runID, name string, data []byte) (string, error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Archive(context.Context, string, string, []byte) (string, error) {
	return "", nil
}

// objectKey is "<yyyy>/<mm>/<run id>-<file name>".
func objectKey(at time.Time, runID, name string) string {
	return path.Join(at.UTC().Format("2006/01"), runID+"-"+filepath.Base(name))
}
