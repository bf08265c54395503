package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFile_MissingReturnsDefault(t *testing.T) {
	s, err := LoadFile(filepath.Join(t.TempDir(), WatchConfigFileName))
	require.NoError(t, err)
	require.Equal(t, Default(), s)
}

func TestSaveFile_LoadFile_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), WatchConfigFileName)
	s := Default()
	s.QualityMode = QualityManual
	s.QualityValue = 72

	require.NoError(t, SaveFile(path, s))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, QualityManual, loaded.QualityMode)
	require.Equal(t, 72, loaded.QualityValue)
}
