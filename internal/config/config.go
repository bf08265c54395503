// Package config defines the engine's run-scoped settings: a typed record with
// safe defaults and a normalization pass, following the shape of a plain
// validated settings struct rather than a dynamic options bag.
package config

import (
	"errors"
	"runtime"
	"time"
)

// OutputMode selects where optimized files land.
type OutputMode string

const (
	OutputSubfolder OutputMode = "subfolder"
	OutputReplace   OutputMode = "replace"
)

// ExportPreset bundles a quality/metadata policy under one name.
type ExportPreset string

const (
	PresetOriginal ExportPreset = "original"
	PresetWeb      ExportPreset = "web"
	PresetDesign   ExportPreset = "design"
)

// QualityMode selects how JPEG/WebP quality is chosen.
type QualityMode string

const (
	QualityAuto   QualityMode = "auto"   // ladder search, SSIM guarded
	QualitySmart  QualityMode = "smart"  // binary search on target metric
	QualityManual QualityMode = "manual" // fixed value, no search
)

// SmartTarget names a perceptual-quality floor for the smart search.
type SmartTarget string

const (
	TargetVisuallyLossless SmartTarget = "visually-lossless"
	TargetHigh             SmartTarget = "high"
	TargetBalanced         SmartTarget = "balanced"
	TargetSmall            SmartTarget = "small"
	TargetCustom           SmartTarget = "custom"
)

// Speed trades search thoroughness for wall-clock time.
type Speed string

const (
	SpeedFast     Speed = "fast"
	SpeedBalanced Speed = "balanced"
	SpeedThorough Speed = "thorough"
)

// ICCMode controls ICC profile handling.
type ICCMode string

const (
	ICCConvertToSRGB ICCMode = "convert_srgb"
	ICCKeep          ICCMode = "keep"
	ICCStrip         ICCMode = "strip"
)

// MetadataPreset names a pre-packaged metadata policy.
type MetadataPreset string

const (
	MetaWebSafe        MetadataPreset = "web-safe"
	MetaMaxCompression MetadataPreset = "max-compression"
	MetaKeepCopyright  MetadataPreset = "keep-copyright"
	MetaKeepCameraInfo MetadataPreset = "keep-camera-info"
	MetaCustom         MetadataPreset = "custom"
)

// MetadataSettings controls the Metadata Processor (spec §4.5).
type MetadataSettings struct {
	Enabled     bool
	Preset      MetadataPreset
	StripEXIF   bool
	StripXMP    bool
	StripIPTC   bool
	ICC         ICCMode
	GPSClean    bool
	KeepCamera  bool // "keep camera info" flag; contradicts GPSClean per spec §4.5
}

// ResponsiveMode selects the derivative planning strategy (spec §4.8).
type ResponsiveMode string

const (
	ResponsiveWidth ResponsiveMode = "width"
	ResponsiveDPR   ResponsiveMode = "dpr"
)

// FormatPolicy selects which formats the Responsive Derivative Engine emits.
type FormatPolicy string

const (
	FormatKeep        FormatPolicy = "keep"
	FormatWebPFallback FormatPolicy = "webp-fallback"
	FormatWebPOnly     FormatPolicy = "webp-only"
)

// ResponsiveSettings configures responsive derivative generation.
type ResponsiveSettings struct {
	Mode            ResponsiveMode
	Widths          []int
	DPRBaseWidth    int
	FormatPolicy    FormatPolicy
	AllowUpscale    bool
	IncludeOriginal bool
	Preset          ExportPreset
	SizesTemplate   string
	CustomSizes     string
}

// EffectiveSettings is the immutable, validated settings record threaded
// through a single run (spec §3).
type EffectiveSettings struct {
	OutputMode       OutputMode
	Preset           ExportPreset
	NamingTemplate   string

	QualityMode  QualityMode
	QualityValue int // manual quality, 1-100
	WebPEffort   int // 4-6

	NearLossless    bool
	AggressivePNG   bool
	Concurrency     int // 0 = auto
	AllowLarger     bool
	SSIMGuard       bool
	SmartTarget     SmartTarget
	CustomGuardrail int // 0-100, used when SmartTarget == TargetCustom
	Speed           Speed

	Metadata   MetadataSettings
	Responsive ResponsiveSettings

	// ConfirmDangerousReplace gates replace-mode runs that also convert
	// format (e.g. to WebP); see SPEC_FULL.md Supplemented Features #4.
	ConfirmDangerousReplace bool

	JobTimeout time.Duration
}

// Default returns settings with sensible, conservative defaults.
func Default() EffectiveSettings {
	return EffectiveSettings{
		OutputMode:     OutputSubfolder,
		Preset:         PresetWeb,
		NamingTemplate: "{name}",
		QualityMode:    QualityAuto,
		QualityValue:   85,
		WebPEffort:     4,
		Concurrency:    0,
		SSIMGuard:      true,
		SmartTarget:    TargetBalanced,
		Speed:          SpeedBalanced,
		Metadata: MetadataSettings{
			Enabled: true,
			Preset:  MetaWebSafe,
			ICC:     ICCConvertToSRGB,
		},
		JobTimeout: 30 * time.Second,
	}
}

// Normalize clamps fields to their valid ranges and resolves auto values.
// Mirrors the teacher's config.Validate entry-point normalization.
func Normalize(s EffectiveSettings) EffectiveSettings {
	if s.QualityValue < 1 {
		s.QualityValue = 1
	} else if s.QualityValue > 100 {
		s.QualityValue = 100
	}
	if s.WebPEffort < 4 {
		s.WebPEffort = 4
	} else if s.WebPEffort > 6 {
		s.WebPEffort = 6
	}
	if s.CustomGuardrail < 0 || s.CustomGuardrail > 100 {
		s.CustomGuardrail = 90
	}
	if s.Concurrency <= 0 {
		s.Concurrency = WorkerCount(s.Concurrency)
	}
	if s.JobTimeout <= 0 {
		s.JobTimeout = 30 * time.Second
	}
	if s.NamingTemplate == "" {
		s.NamingTemplate = "{name}"
	}
	return s
}

// WorkerCount resolves the worker pool size: explicit N if positive, else
// max(1, min(4, cores-1)) per spec §4.10.
func WorkerCount(explicit int) int {
	if explicit > 0 {
		return explicit
	}
	n := runtime.NumCPU() - 1
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Validate checks settings for internal consistency beyond simple clamping.
func Validate(s EffectiveSettings) error {
	if s.SmartTarget == TargetCustom && (s.CustomGuardrail < 0 || s.CustomGuardrail > 100) {
		return errors.New("config: CustomGuardrail must be within [0,100] when SmartTarget is custom")
	}
	if s.OutputMode != OutputSubfolder && s.OutputMode != OutputReplace {
		return errors.New("config: unknown OutputMode")
	}
	return nil
}

// SSIMThreshold resolves the MSSIM acceptance threshold for the ladder
// strategy from the SSIM-guard/aggressive flags (spec §4.4).
func (s EffectiveSettings) SSIMThreshold() float64 {
	if !s.SSIMGuard {
		return 0
	}
	if s.AggressivePNG {
		return 0.99
	}
	return 0.995
}

// SmartThreshold resolves the MSSIM acceptance threshold for the smart
// binary search from SmartTarget/CustomGuardrail (spec §4.4).
func (s EffectiveSettings) SmartThreshold() float64 {
	switch s.SmartTarget {
	case TargetVisuallyLossless:
		return 0.999
	case TargetHigh:
		return 0.995
	case TargetBalanced:
		return 0.99
	case TargetSmall:
		return 0.98
	case TargetCustom:
		return float64(s.CustomGuardrail) / 100
	default:
		return 0.99
	}
}

// SmartIterations resolves the binary-search iteration budget from Speed
// (spec §4.4).
func (s EffectiveSettings) SmartIterations() int {
	switch s.Speed {
	case SpeedFast:
		return 4
	case SpeedThorough:
		return 8
	default:
		return 6
	}
}
