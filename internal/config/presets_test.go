package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPresetFile_MissingReturnsEmpty(t *testing.T) {
	pf, err := LoadPresetFile(filepath.Join(t.TempDir(), PresetFileName))
	require.NoError(t, err)
	require.Empty(t, pf.Names())
}

func TestSavePresetFile_LoadPresetFile_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), PresetFileName)
	pf := PresetFile{Preset: map[string]PresetOverride{
		"archival": {QualityMode: QualityManual, QualityValue: 95, ICC: ICCKeep},
	}}

	require.NoError(t, SavePresetFile(path, pf))

	loaded, err := LoadPresetFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"archival"}, loaded.Names())
	require.Equal(t, 95, loaded.Preset["archival"].QualityValue)
}

func TestPresetFile_Apply(t *testing.T) {
	pf := PresetFile{Preset: map[string]PresetOverride{
		"web-small": {QualityMode: QualityManual, QualityValue: 60},
	}}

	out, err := pf.Apply(Default(), "web-small")
	require.NoError(t, err)
	require.Equal(t, QualityManual, out.QualityMode)
	require.Equal(t, 60, out.QualityValue)
}

func TestPresetFile_Apply_UnknownName(t *testing.T) {
	pf := PresetFile{Preset: map[string]PresetOverride{}}
	_, err := pf.Apply(Default(), "nope")
	require.Error(t, err)
}
