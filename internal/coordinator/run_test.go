package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
)

func TestIsDangerousReplace(t *testing.T) {
	replace := config.EffectiveSettings{OutputMode: config.OutputReplace}
	subfolder := config.EffectiveSettings{OutputMode: config.OutputSubfolder}

	require.True(t, isDangerousReplace(RunRequest{Mode: ModeConvertWebP, Settings: replace}))
	require.True(t, isDangerousReplace(RunRequest{Mode: ModeOptimizeAndWebP, Settings: replace}))
	require.False(t, isDangerousReplace(RunRequest{Mode: ModeOptimize, Settings: replace}))
	require.False(t, isDangerousReplace(RunRequest{Mode: ModeConvertWebP, Settings: subfolder}))
}

func TestNewRunID_DifferentForDifferentPaths(t *testing.T) {
	id1 := newRunID([]string{"/a.jpg"})
	id2 := newRunID([]string{"/b.jpg"})
	require.NotEqual(t, id1, id2)
	require.Contains(t, id1, "-")
}

func TestTargetFormatFor(t *testing.T) {
	require.Equal(t, imageio.FormatWebP, targetFormatFor(ModeConvertWebP, imageio.FormatJPEG))
	require.Equal(t, imageio.FormatJPEG, targetFormatFor(ModeOptimize, imageio.FormatTIFF))
	require.Equal(t, imageio.FormatPNG, targetFormatFor(ModeOptimize, imageio.FormatPNG))
}
