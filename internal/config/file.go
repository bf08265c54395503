package config

import (
	"encoding/json"
	"os"
)

// WatchConfigFileName is the on-disk name spec §6 mandates for the global
// watch settings file (GetGlobalWatchSettings/UpdateGlobalWatchSettings).
const WatchConfigFileName = "watch-config.json"

// LoadFile reads persisted settings (spec §6 GetGlobalWatchSettings) from a
// JSON file. Missing file is not an error; callers get Default().
func LoadFile(path string) (EffectiveSettings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), err
	}
	return s, nil
}

// SaveFile persists settings as JSON, e.g. for UpdateGlobalWatchSettings
// (spec §6) so the CLI's next invocation and the watch service agree on
// defaults without a running daemon to hold them in memory.
func SaveFile(path string, s EffectiveSettings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
