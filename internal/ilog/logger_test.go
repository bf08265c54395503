package ilog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRunLog_CreatesFileAndWrites(t *testing.T) {
	dir := t.TempDir()
	logger, f, err := NewRunLog(dir, "run1", 0)
	require.NoError(t, err)
	defer f.Close()

	logger.Info("hello", "key", "value")

	data, err := os.ReadFile(filepath.Join(dir, "run1", "optimise-log.jsonl"))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}

func TestNop_DoesNotPanic(t *testing.T) {
	var l Logger = Nop{}
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}
