package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imageopt/engine/internal/config"
)

type fakeProcessor struct {
	calls      int64
	failTimes  int64
}

func (f *fakeProcessor) ProcessOne(ctx context.Context, path string, settings config.EffectiveSettings) error {
	n := atomic.AddInt64(&f.calls, 1)
	if n <= atomic.LoadInt64(&f.failTimes) {
		return errors.New("transient")
	}
	return nil
}

func TestService_Process_SkipsAlreadySeenFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	idx, err := NewProcessedIndex(filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	proc := &fakeProcessor{}
	svc := NewService(idx, proc)

	cfg := FolderConfig{Path: dir, Enabled: true}
	svc.process(context.Background(), path, cfg)
	require.Equal(t, int64(1), proc.calls)

	svc.process(context.Background(), path, cfg)
	require.Equal(t, int64(1), proc.calls, "second run should be deduped by fingerprint")
}

func TestService_Process_RetriesOnTransientFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	idx, err := NewProcessedIndex(filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	proc := &fakeProcessor{failTimes: 1}
	svc := NewService(idx, proc)

	cfg := FolderConfig{Path: dir, Enabled: true}
	svc.process(context.Background(), path, cfg)
	require.GreaterOrEqual(t, proc.calls, int64(2))
}

func TestService_Process_RespectsSizeCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*1024*1024), 0o644))

	idx, err := NewProcessedIndex(filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	proc := &fakeProcessor{}
	svc := NewService(idx, proc)

	cfg := FolderConfig{Path: dir, Enabled: true, MaxFileSizeMB: 1}
	svc.process(context.Background(), path, cfg)
	require.Equal(t, int64(0), proc.calls)
}

func TestAddRemoveListFolders(t *testing.T) {
	idx, err := NewProcessedIndex(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)
	svc := NewService(idx, &fakeProcessor{})

	require.NoError(t, svc.AddFolder(FolderConfig{Path: "/watched", Enabled: true}))
	require.Len(t, svc.ListFolders(), 1)

	require.NoError(t, svc.RemoveFolder("/watched"))
	require.Len(t, svc.ListFolders(), 0)
}
