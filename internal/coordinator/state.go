package coordinator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/atomicio"
	"github.com/imageopt/engine/internal/config"
)

// BackupRecord pairs an original file with its pre-run backup copy, so a
// run can be reversed (spec §3/§4.11).
type BackupRecord struct {
	OriginalPath     string `json:"original_path"`
	BackupPath       string `json:"backup_path"`
	RemoveOnRestore  bool   `json:"remove_on_restore,omitempty"`
}

// FailureEntry records one failed file for the run log and summary.
type FailureEntry struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Summary is the final aggregate counters for one run (spec §6).
type Summary struct {
	RunID              string         `json:"run_id"`
	TotalFiles         int            `json:"total_files"`
	ProcessedFiles     int            `json:"processed_files"`
	ConvertedFiles     int            `json:"converted_files"`
	SkippedFiles       int            `json:"skipped_files"`
	FailedFiles        int            `json:"failed_files"`
	TotalOriginalBytes int64          `json:"total_original_bytes"`
	TotalOutputBytes   int64          `json:"total_output_bytes"`
	TotalSavedBytes    int64          `json:"total_saved_bytes"`
	ElapsedMS          int64          `json:"elapsed_ms"`
	LogPath            string         `json:"log_path"`
	Failures           []FailureEntry `json:"failures"`
}

// RunLogEntry is one per-file record in the persisted run log.
type RunLogEntry struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path,omitempty"`
	Status     string `json:"status"`
	Original   int64  `json:"original_bytes"`
	Output     int64  `json:"output_bytes,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunLog is the full structured JSON record persisted under
// <common_root>/.optimise-logs/<run_id>/optimise-log.json (spec §6).
type RunLog struct {
	RunID      string                  `json:"run_id"`
	Mode       string                  `json:"mode"`
	Settings   config.EffectiveSettings `json:"settings"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Cancelled  bool                    `json:"cancelled"`
	Summary    Summary                 `json:"summary"`
	Entries    []RunLogEntry           `json:"entries"`
}

// LastRunState is the single persisted record of the most recently
// completed run, consumed by Restore (spec §4.11, §3).
type LastRunState struct {
	RunID         string         `json:"run_id"`
	BackupDir     string         `json:"backup_dir"`
	BackupRecords []BackupRecord `json:"backup_records"`
	LogPath       string         `json:"log_path"`
}

// appDataDir is the .imageopt directory under base that holds last-run.json.
// The Coordinator passes each run's common root as base, so last-run.json is
// kept per common root rather than in one app-wide location; watch-config.json
// and processed-index.json are not stored here by this package.
func appDataDir(base string) string {
	return filepath.Join(base, ".imageopt")
}

// LastRunPath returns the path to last-run.json under base.
func LastRunPath(base string) string {
	return filepath.Join(appDataDir(base), "last-run.json")
}

// SaveLastRunState persists state atomically via internal/atomicio.
func SaveLastRunState(base string, state LastRunState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.CategoryWrite, "coordinator.SaveLastRunState", err)
	}
	path := LastRunPath(base)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.New(apperrors.CategoryWrite, "coordinator.SaveLastRunState", err)
	}
	return writeAtomicFile(path, data)
}

// LoadLastRunState reads the persisted last-run state, or returns
// (LastRunState{}, false, nil) if none exists yet.
func LoadLastRunState(base string) (LastRunState, bool, error) {
	data, err := os.ReadFile(LastRunPath(base))
	if os.IsNotExist(err) {
		return LastRunState{}, false, nil
	}
	if err != nil {
		return LastRunState{}, false, apperrors.New(apperrors.CategoryUnknown, "coordinator.LoadLastRunState", err)
	}
	var state LastRunState
	if err := json.Unmarshal(data, &state); err != nil {
		return LastRunState{}, false, apperrors.New(apperrors.CategoryUnknown, "coordinator.LoadLastRunState", err)
	}
	return state, true, nil
}

// SaveRunLog persists the structured per-run JSON log (spec §6).
func SaveRunLog(logDir string, log RunLog) (string, error) {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "coordinator.SaveRunLog", err)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "coordinator.SaveRunLog", err)
	}
	path := filepath.Join(logDir, "optimise-log.json")
	if err := writeAtomicFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeAtomicFile writes data via a temp file + rename in the same
// directory, same pattern as internal/atomicio.Write but without the
// image-format validation step (callers write JSON or plain-text sidecars).
func writeAtomicFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.New(apperrors.CategoryWrite, "coordinator.writeAtomicFile", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.New(apperrors.CategoryWrite, "coordinator.writeAtomicFile", err)
	}
	return nil
}

// Restore reverses the most recent run by copying each backup over its
// original via internal/atomicio (temp + rename), per spec §4.11.
func Restore(base string) (restored, failed int, message string, err error) {
	state, ok, loadErr := LoadLastRunState(base)
	if loadErr != nil {
		return 0, 0, "", loadErr
	}
	if !ok {
		return 0, 0, "no previous run to restore", nil
	}

	for _, rec := range state.BackupRecords {
		data, readErr := os.ReadFile(rec.BackupPath)
		if readErr != nil {
			failed++
			continue
		}
		format := DetectFormatFromPath(rec.OriginalPath)
		if _, writeErr := atomicio.Write(rec.OriginalPath, data, format, atomicio.DefaultValidator, ""); writeErr != nil {
			failed++
			continue
		}
		restored++
	}

	message = "restore complete"
	return restored, failed, message, nil
}

// CanRestore reports whether a previous run's state is available to restore.
func CanRestore(base string) bool {
	_, ok, err := LoadLastRunState(base)
	return ok && err == nil
}
