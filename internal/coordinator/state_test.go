package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLastRunState_SaveLoadRoundtrip(t *testing.T) {
	base := t.TempDir()

	_, ok, err := LoadLastRunState(base)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, CanRestore(base))

	state := LastRunState{
		RunID:     "20260730T000000-abc123",
		BackupDir: filepath.Join(base, "Originals Backup", "20260730T000000-abc123"),
		BackupRecords: []BackupRecord{
			{OriginalPath: filepath.Join(base, "a.jpg"), BackupPath: filepath.Join(base, "backup", "a.jpg.bak")},
		},
	}
	require.NoError(t, SaveLastRunState(base, state))

	loaded, ok, err := LoadLastRunState(base)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state.RunID, loaded.RunID)
	require.True(t, CanRestore(base))
}

func TestRestore_CopiesBackupOverOriginal(t *testing.T) {
	base := t.TempDir()
	original := filepath.Join(base, "photo.jpg")
	backup := filepath.Join(base, "backup", "photo.jpg.bak")

	require.NoError(t, os.WriteFile(original, []byte("optimized"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(backup), 0o755))
	require.NoError(t, os.WriteFile(backup, jpegBytes(t), 0o644))

	require.NoError(t, SaveLastRunState(base, LastRunState{
		RunID: "run-1",
		BackupRecords: []BackupRecord{
			{OriginalPath: original, BackupPath: backup},
		},
	}))

	restored, failed, _, err := Restore(base)
	require.NoError(t, err)
	require.Equal(t, 1, restored)
	require.Equal(t, 0, failed)

	got, err := os.ReadFile(original)
	require.NoError(t, err)
	require.Equal(t, jpegBytes(t), got)
}

func TestRestore_NoPriorRun(t *testing.T) {
	base := t.TempDir()
	restored, failed, msg, err := Restore(base)
	require.NoError(t, err)
	require.Equal(t, 0, restored)
	require.Equal(t, 0, failed)
	require.NotEmpty(t, msg)
}
