package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// File locks by creating <dir>/<key>.lock exclusively. A lock file older
// than the ttl is treated as left over from a crashed run and replaced.
type File struct {
	Dir string
}

func NewFile(dir string) *File {
	return &File{Dir: dir}
}

func (f *File) path(key string) string {
	return filepath.Join(f.Dir, key+".lock")
}

func (f *File) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("lock dir: %w", err)
	}
	p := f.path(key)

	fh, err := create(p)
	if errors.Is(err, os.ErrExist) && stale(p, ttl) {
		_ = os.Remove(p)
		fh, err = create(p)
	}
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, p)
	}
	if err != nil {
		return nil, fmt.Errorf("create lock %s: %w", p, err)
	}
	_, _ = fh.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	_ = fh.Close()

	var once sync.Once
	return func() {
		once.Do(func() { _ = os.Remove(p) })
	}, nil
}

func create(p string) (*os.File, error) {
	return os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

func stale(p string, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	st, err := os.Stat(p)
	if err != nil {
		return false
	}
	return time.Since(st.ModTime()) > ttl
}
