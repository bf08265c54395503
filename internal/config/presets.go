package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// PresetFileName is the ancillary, human-editable file users can hand-author
// to define their own named export presets, layered on top of the three
// built-in ExportPreset values. Unlike watch-config.json this is optional and
// never written by the engine itself except via SavePresetFile.
const PresetFileName = "presets.toml"

// PresetFile is the on-disk shape of presets.toml: a table of named presets,
// each a sparse override applied on top of Default().
type PresetFile struct {
	Preset map[string]PresetOverride `toml:"preset"`
}

// PresetOverride is a named preset's fields; zero values mean "leave
// Default()'s value in place" for QualityValue/WebPEffort/Concurrency, and
// "" means unset for the string-typed fields.
type PresetOverride struct {
	QualityMode  QualityMode `toml:"quality_mode,omitempty"`
	QualityValue int         `toml:"quality_value,omitempty"`
	WebPEffort   int         `toml:"webp_effort,omitempty"`
	ICC          ICCMode     `toml:"icc,omitempty"`
	OutputMode   OutputMode  `toml:"output_mode,omitempty"`
}

// LoadPresetFile reads path's named presets; a missing file yields an empty,
// non-error PresetFile so callers can treat "no custom presets" uniformly.
func LoadPresetFile(path string) (PresetFile, error) {
	pf := PresetFile{Preset: map[string]PresetOverride{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pf, nil
		}
		return pf, err
	}
	if err := toml.Unmarshal(data, &pf); err != nil {
		return PresetFile{}, err
	}
	if pf.Preset == nil {
		pf.Preset = map[string]PresetOverride{}
	}
	return pf, nil
}

// SavePresetFile writes pf as TOML, the one place this module still chooses
// TOML over JSON: presets.toml is meant to be hand-edited, and go-toml's
// output reads far better by hand than MarshalIndent JSON does.
func SavePresetFile(path string, pf PresetFile) error {
	data, err := toml.Marshal(pf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Names returns pf's preset names in sorted order, for listing.
func (pf PresetFile) Names() []string {
	names := make([]string, 0, len(pf.Preset))
	for n := range pf.Preset {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply layers a named override from pf onto base, returning an error if name
// isn't defined.
func (pf PresetFile) Apply(base EffectiveSettings, name string) (EffectiveSettings, error) {
	ov, ok := pf.Preset[name]
	if !ok {
		return base, fmt.Errorf("config: unknown preset %q", name)
	}
	out := base
	if ov.QualityMode != "" {
		out.QualityMode = ov.QualityMode
	}
	if ov.QualityValue != 0 {
		out.QualityValue = ov.QualityValue
	}
	if ov.WebPEffort != 0 {
		out.WebPEffort = ov.WebPEffort
	}
	if ov.ICC != "" {
		out.Metadata.ICC = ov.ICC
	}
	if ov.OutputMode != "" {
		out.OutputMode = ov.OutputMode
	}
	return Normalize(out), nil
}
