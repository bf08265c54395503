// Package watch implements the Watch Service: per-folder fsnotify observers,
// a poll-based stability gate, a fingerprint-based ProcessedIndex, and a
// bounded retry queue (spec §4.12). Grounded on theweak1-file-maintenance's
// retry/backoff copy (copyFileWithRetry/backoffForAttempt) adapted to job
// retry, plus its ignore-pattern vocabulary reused from internal/coordinator.
package watch

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/imageopt/engine/internal/apperrors"
)

func copyAll(h *xxhash.Digest, r io.Reader) (int64, error) {
	return io.Copy(h, r)
}

func formatHash(sum uint64) string {
	return strconv.FormatUint(sum, 16)
}

// Fingerprint identifies a file's content well enough to detect reprocessing
// without hashing the whole file on every poll (spec §4.12 step 6).
type Fingerprint struct {
	Size  int64  `json:"size"`
	Mtime int64  `json:"mtime"` // unix nanoseconds
	Hash  string `json:"hash"`
}

// indexHashSampleSize bounds how much of a large file is hashed: first and
// last 1 MiB (spec §4.12).
const indexHashSampleSize = 1 << 20

// ComputeFingerprint computes a Fingerprint for path: full-file hash when small
// enough, otherwise a hash of the first and last indexHashSampleSize bytes.
func ComputeFingerprint(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, apperrors.New(apperrors.CategoryUnknown, "watch.ComputeFingerprint", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, apperrors.New(apperrors.CategoryUnknown, "watch.ComputeFingerprint", err)
	}
	defer f.Close()

	h := xxhash.New()
	size := info.Size()
	if size <= 2*indexHashSampleSize {
		if _, err := copyAll(h, f); err != nil {
			return Fingerprint{}, apperrors.New(apperrors.CategoryUnknown, "watch.ComputeFingerprint", err)
		}
	} else {
		head := make([]byte, indexHashSampleSize)
		if _, err := f.ReadAt(head, 0); err != nil {
			return Fingerprint{}, apperrors.New(apperrors.CategoryUnknown, "watch.ComputeFingerprint", err)
		}
		tail := make([]byte, indexHashSampleSize)
		if _, err := f.ReadAt(tail, size-indexHashSampleSize); err != nil {
			return Fingerprint{}, apperrors.New(apperrors.CategoryUnknown, "watch.ComputeFingerprint", err)
		}
		_, _ = h.Write(head)
		_, _ = h.Write(tail)
	}

	return Fingerprint{
		Size:  size,
		Mtime: info.ModTime().UnixNano(),
		Hash:  formatHash(h.Sum64()),
	}, nil
}

// ProcessedIndex is a single in-memory map of path -> Fingerprint, guarded
// by a mutex, with debounced JSON persistence (spec §5: "a single in-memory
// map guarded by a mutex; persistence uses a debounced writer").
type ProcessedIndex struct {
	mu      sync.Mutex
	entries map[string]Fingerprint
	path    string

	dirty     bool
	persistMu sync.Mutex
}

// indexFileVersion is the schema version written into processed-index.json
// (spec §6: `{version: 1, index: {...}}`).
const indexFileVersion = 1

type indexFile struct {
	Version int                    `json:"version"`
	Index   map[string]Fingerprint `json:"index"`
}

// NewProcessedIndex loads path if it exists, or starts empty.
func NewProcessedIndex(path string) (*ProcessedIndex, error) {
	idx := &ProcessedIndex{entries: make(map[string]Fingerprint), path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryUnknown, "watch.NewProcessedIndex", err)
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, apperrors.New(apperrors.CategoryUnknown, "watch.NewProcessedIndex", err)
	}
	if f.Index != nil {
		idx.entries = f.Index
	}
	return idx, nil
}

// Seen reports whether fp matches the last recorded fingerprint for path.
func (idx *ProcessedIndex) Seen(path string, fp Fingerprint) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	existing, ok := idx.entries[path]
	return ok && existing == fp
}

// Record stores fp for path and marks the index dirty for the next flush.
func (idx *ProcessedIndex) Record(path string, fp Fingerprint) {
	idx.mu.Lock()
	idx.entries[path] = fp
	idx.mu.Unlock()

	idx.persistMu.Lock()
	idx.dirty = true
	idx.persistMu.Unlock()
}

// Flush serializes the whole map to a new file and atomically renames over
// path, the debounced-writer pattern spec §5 calls for. Callers typically
// invoke this from a ticker every couple of seconds rather than per-Record.
func (idx *ProcessedIndex) Flush() error {
	idx.persistMu.Lock()
	if !idx.dirty {
		idx.persistMu.Unlock()
		return nil
	}
	idx.dirty = false
	idx.persistMu.Unlock()

	idx.mu.Lock()
	snapshot := make(map[string]Fingerprint, len(idx.entries))
	for k, v := range idx.entries {
		snapshot[k] = v
	}
	idx.mu.Unlock()

	data, err := json.MarshalIndent(indexFile{Version: indexFileVersion, Index: snapshot}, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.CategoryWrite, "watch.Flush", err)
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return apperrors.New(apperrors.CategoryWrite, "watch.Flush", err)
	}
	tmp := idx.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperrors.New(apperrors.CategoryWrite, "watch.Flush", err)
	}
	if err := os.Rename(tmp, idx.path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.New(apperrors.CategoryWrite, "watch.Flush", err)
	}
	return nil
}
