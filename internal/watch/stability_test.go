package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitStable_SucceedsOnUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.jpg")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := WaitStable(ctx, path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 2*stabilityPollInterval)
}

func TestWaitStable_ErrorsOnMissingFile(t *testing.T) {
	ctx := context.Background()
	err := WaitStable(ctx, "/nonexistent/path/f.jpg")
	require.Error(t, err)
}

func TestIsEligible(t *testing.T) {
	require.True(t, isEligible("/a/b/photo.jpg"))
	require.False(t, isEligible("/a/b/.hidden.jpg"))
	require.False(t, isEligible("/a/b/~lock.png"))
	require.False(t, isEligible("/a/b/partial.png.part"))
	require.False(t, isEligible("/a/b/doc.txt"))
}

func TestBackoffForAttempt(t *testing.T) {
	require.Equal(t, 3*time.Second, backoffForAttempt(1))
	require.Equal(t, 6*time.Second, backoffForAttempt(2))
}
