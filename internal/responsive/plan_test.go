package responsive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
)

func TestPlan_WidthMode(t *testing.T) {
	settings := config.ResponsiveSettings{
		Mode:         config.ResponsiveWidth,
		Widths:       []int{320, 640, 1280},
		FormatPolicy: config.FormatWebPOnly,
	}
	derivatives := Plan(settings, 1000, 500)
	require.Len(t, derivatives, 2) // 1280 upscale skipped (no AllowUpscale)
	for _, d := range derivatives {
		require.Equal(t, imageio.FormatWebP, d.Format)
	}
}

func TestPlan_WidthModeAllowUpscale(t *testing.T) {
	settings := config.ResponsiveSettings{
		Mode:         config.ResponsiveWidth,
		Widths:       []int{320, 640, 1280},
		FormatPolicy: config.FormatWebPOnly,
		AllowUpscale: true,
	}
	derivatives := Plan(settings, 1000, 500)
	require.Len(t, derivatives, 3)
}

func TestPlan_DPRMode(t *testing.T) {
	settings := config.ResponsiveSettings{
		Mode:         config.ResponsiveDPR,
		DPRBaseWidth: 200,
		FormatPolicy: config.FormatWebPOnly,
		AllowUpscale: true,
	}
	derivatives := Plan(settings, 2000, 1000)
	require.Len(t, derivatives, 3)
	require.Equal(t, 200, derivatives[0].Width)
	require.Equal(t, 400, derivatives[1].Width)
	require.Equal(t, 600, derivatives[2].Width)
}

func TestPlan_WebPFallbackProducesTwoFormats(t *testing.T) {
	settings := config.ResponsiveSettings{
		Mode:         config.ResponsiveWidth,
		Widths:       []int{320},
		FormatPolicy: config.FormatWebPFallback,
	}
	derivatives := Plan(settings, 1000, 500)
	require.Len(t, derivatives, 2)

	resolved := ResolveSourceFormat(derivatives, imageio.FormatJPEG)
	var sawWebP, sawJPEG bool
	for _, d := range resolved {
		if d.Format == imageio.FormatWebP {
			sawWebP = true
		}
		if d.Format == imageio.FormatJPEG {
			sawJPEG = true
		}
	}
	require.True(t, sawWebP)
	require.True(t, sawJPEG)
}

func TestSizes_CustomOverridesTemplate(t *testing.T) {
	require.Equal(t, "custom", Sizes("full-width", "custom"))
	require.Equal(t, "100vw", Sizes("full-width", ""))
}
