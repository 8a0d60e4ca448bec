package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewFile(t.TempDir())

	unlock, err := l.Acquire(ctx, "optrack", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "optrack", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := l.Acquire(ctx, "other", time.Minute)
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := l.Acquire(ctx, "optrack", time.Minute)
	require.NoError(t, err)
	again()
}

func TestFileLockReplacesStale(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "optrack.lock")
	require.NoError(t, os.WriteFile(p, []byte("1\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p, old, old))

	unlock, err := NewFile(dir).Acquire(context.Background(), "optrack", time.Minute)
	require.NoError(t, err)
	unlock()

	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}

func TestFileLockCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFile(t.TempDir()).Acquire(ctx, "optrack", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("OPTRACK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OPTRACK_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	r, err := NewRedis(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	key := "test-" + time.Now().Format("150405.000000")
	unlock, err := r.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)

	_, err = r.Acquire(ctx, key, 10*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	unlock()
	again, err := r.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	again()
}
