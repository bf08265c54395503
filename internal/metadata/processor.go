// Package metadata implements the Metadata Processor: orientation bake-in,
// ICC handling, and EXIF/XMP/IPTC/GPS stripping per preset (spec §4.5).
// Grounded on the teacher's pipeline.StripEXIFStep, generalized from a
// single strip-everything step into a policy-driven processor.
package metadata

import (
	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
)

// Report documents what the processor actually did, for the run log.
type Report struct {
	OrientationBaked bool
	ICCAction        config.ICCMode
	StrippedEXIF     bool
	StrippedXMP      bool
	StrippedIPTC     bool
	GPSStripped      bool
	EscalatedToStrip bool // keep-camera-info vs GPS-clean conflict, resolved by stripping (spec §4.5.3)
}

// Resolve expands a named preset into concrete flags. Custom passes s through.
func Resolve(s config.MetadataSettings) config.MetadataSettings {
	switch s.Preset {
	case config.MetaWebSafe:
		s.StripEXIF, s.StripXMP, s.StripIPTC, s.GPSClean = true, true, true, true
		s.ICC = config.ICCConvertToSRGB
	case config.MetaMaxCompression:
		s.StripEXIF, s.StripXMP, s.StripIPTC, s.GPSClean = true, true, true, true
		s.ICC = config.ICCStrip
	case config.MetaKeepCopyright:
		s.StripEXIF, s.StripXMP, s.StripIPTC, s.GPSClean = false, false, false, true
		s.ICC = config.ICCConvertToSRGB
	case config.MetaKeepCameraInfo:
		s.StripEXIF, s.StripXMP, s.StripIPTC = false, false, false
		s.KeepCamera = true
		s.ICC = config.ICCConvertToSRGB
	case config.MetaCustom:
		// flags already set by caller
	}
	return s
}

// Process bakes orientation into the pixel buffer, resolves the ICC policy,
// and strips metadata according to settings, returning the transformed
// Decoded and a report of what happened.
func Process(decoded *imageio.Decoded, settings config.MetadataSettings) (*imageio.Decoded, Report) {
	settings = Resolve(settings)

	out := *decoded
	report := Report{ICCAction: settings.ICC}

	if !settings.Enabled {
		return &out, report
	}

	// ICC handling re-decodes the original bytes, so it runs before the
	// orientation bake-in to keep the rotated pixels.
	if settings.ICC != config.ICCKeep {
		out.Image = applyICC(&out, settings.ICC)
	}

	if decoded.Meta.Orientation > 1 {
		out.Image = bakeOrientation(out.Image, decoded.Meta.Orientation)
		out.Meta.Orientation = 1
		report.OrientationBaked = true
	}

	// "keep camera info" contradicts "GPS clean": escalate to strip-EXIF to
	// guarantee GPS removal (spec §4.5.3, documented fallback).
	stripEXIF := settings.StripEXIF
	if settings.KeepCamera && settings.GPSClean {
		stripEXIF = true
		report.EscalatedToStrip = true
	}

	if stripEXIF {
		out.Meta.EXIF = nil
		out.Meta.HasEXIF = false
		report.StrippedEXIF = true
		report.GPSStripped = true
	} else if settings.GPSClean {
		stripGPSFields(&out)
		report.GPSStripped = true
	}
	report.StrippedXMP = settings.StripXMP
	report.StrippedIPTC = settings.StripIPTC

	return &out, report
}

// stripGPSFields removes only GPS-prefixed EXIF keys, preserving the rest of
// the camera metadata (used when GPSClean is set without a full EXIF strip).
func stripGPSFields(d *imageio.Decoded) {
	if d.Meta.EXIF == nil {
		return
	}
	for k := range d.Meta.EXIF {
		if len(k) >= 3 && k[:3] == "GPS" {
			delete(d.Meta.EXIF, k)
		}
	}
}
