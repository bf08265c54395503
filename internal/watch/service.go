package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/config"
)

// TriggerBehavior selects whether filesystem "change" events (as opposed to
// "create") enqueue a file for reprocessing (spec §4.12 step 2).
type TriggerBehavior string

const (
	TriggerCreatedOnly TriggerBehavior = "created"
	TriggerModified     TriggerBehavior = "modified"
)

// FolderConfig is one watched folder's settings (spec §6's WatchAddFolder).
type FolderConfig struct {
	Path            string
	Enabled         bool
	TriggerBehavior TriggerBehavior
	MaxFileSizeMB   int64
	Settings        config.EffectiveSettings
}

// Processor runs the standard optimize pipeline for one file (spec §4.12
// step 7). The caller of NewService supplies the implementation;
// internal/coordinator does not implement this interface.
type Processor interface {
	ProcessOne(ctx context.Context, path string, settings config.EffectiveSettings) error
}

var partialSuffixesWatch = []string{".tmp", ".part", ".crdownload", ".download"}
var supportedExtensionsWatch = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".tif": true, ".tiff": true,
}

// isEligible implements spec §4.12 step 1: extension allowlist, plus
// dropping hidden/system/partial/temp files.
func isEligible(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") || strings.HasPrefix(name, "._") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suf := range partialSuffixesWatch {
		if strings.HasSuffix(lower, suf) {
			return false
		}
	}
	return supportedExtensionsWatch[strings.ToLower(filepath.Ext(path))]
}

// Service runs fsnotify observers over a set of folders, applying the
// stability gate, ProcessedIndex dedup, and retry-with-backoff before
// handing eligible files to a Processor (spec §4.12).
type Service struct {
	Index     *ProcessedIndex
	Processor Processor

	mu      sync.Mutex
	folders map[string]FolderConfig
	pending map[string]bool // per-path dedup: enqueued-or-in-flight

	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	flushWG  sync.WaitGroup
}

// indexFlushInterval is how often the processed index is debounce-flushed to
// disk while the service runs (spec §4.12, §5: "debounced writer… 2s").
const indexFlushInterval = 2 * time.Second

// NewService wires a Service over an already-loaded ProcessedIndex and a
// Processor implementation.
func NewService(index *ProcessedIndex, processor Processor) *Service {
	return &Service{
		Index:     index,
		Processor: processor,
		folders:   make(map[string]FolderConfig),
		pending:   make(map[string]bool),
	}
}

// AddFolder registers folder for watching and starts observing it
// immediately if the service is already running.
func (s *Service) AddFolder(cfg FolderConfig) error {
	s.mu.Lock()
	s.folders[cfg.Path] = cfg
	watcher := s.watcher
	s.mu.Unlock()

	if watcher != nil {
		return watcher.Add(cfg.Path)
	}
	return nil
}

// RemoveFolder stops watching a folder.
func (s *Service) RemoveFolder(path string) error {
	s.mu.Lock()
	delete(s.folders, path)
	watcher := s.watcher
	s.mu.Unlock()

	if watcher != nil {
		return watcher.Remove(path)
	}
	return nil
}

// ListFolders returns the currently registered folder configs.
func (s *Service) ListFolders() []FolderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FolderConfig, 0, len(s.folders))
	for _, f := range s.folders {
		out = append(out, f)
	}
	return out
}

// Toggle flips a folder's Enabled flag.
func (s *Service) Toggle(path string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.folders[path]; ok {
		f.Enabled = enabled
		s.folders[path] = f
	}
}

// Start launches the fsnotify watcher and the event-handling goroutine.
func (s *Service) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.New(apperrors.CategoryUnknown, "watch.Start", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	folders := make([]string, 0, len(s.folders))
	for p := range s.folders {
		folders = append(folders, p)
	}
	s.mu.Unlock()

	for _, p := range folders {
		if err := watcher.Add(p); err != nil {
			return apperrors.New(apperrors.CategoryUnknown, "watch.Start", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.loop(runCtx, watcher)

	s.flushWG.Add(1)
	go s.flushLoop(runCtx)

	return nil
}

// Stop closes the watcher, ends the event loop and flush ticker, and does a
// final Index.Flush so nothing recorded since the last tick is lost.
func (s *Service) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.flushWG.Wait()
	if s.Index != nil {
		_ = s.Index.Flush()
	}
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// flushLoop periodically persists the ProcessedIndex so dedup survives a
// restart (spec §3: "loaded at watcher start; periodic flushes").
func (s *Service) flushLoop(ctx context.Context) {
	defer s.flushWG.Done()
	ticker := time.NewTicker(indexFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Index != nil {
				_ = s.Index.Flush()
			}
		}
	}
}

func (s *Service) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		case <-watcher.Errors:
			// Individual watch errors are non-fatal; the loop keeps running
			// (matches theweak1's log-and-continue walker error policy).
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if !isEligible(ev.Name) {
		return
	}

	folder, cfg := s.folderFor(ev.Name)
	if folder == "" || !cfg.Enabled {
		return
	}
	if ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && cfg.TriggerBehavior != TriggerModified {
		return
	}

	s.mu.Lock()
	if s.pending[ev.Name] {
		s.mu.Unlock()
		return
	}
	s.pending[ev.Name] = true
	s.mu.Unlock()

	go s.process(ctx, ev.Name, cfg)
}

func (s *Service) folderFor(path string) (string, FolderConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Dir(path)
	if cfg, ok := s.folders[dir]; ok {
		return dir, cfg
	}
	return "", FolderConfig{}
}

// process runs the full per-file sequence: stability wait, size cap,
// fingerprint/dedup, process with retry (spec §4.12 steps 4-8).
func (s *Service) process(ctx context.Context, path string, cfg FolderConfig) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()
	}()

	if err := WaitStable(ctx, path); err != nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if cfg.MaxFileSizeMB > 0 && info.Size() > cfg.MaxFileSizeMB*1024*1024 {
		return
	}

	fp, err := ComputeFingerprint(path)
	if err != nil {
		return
	}
	if s.Index.Seen(path, fp) {
		return
	}

	if s.runWithRetry(ctx, path, cfg) {
		s.Index.Record(path, fp)
	}
}

// runWithRetry attempts the pipeline up to maxRetryAttempts+1 times,
// backing off between attempts (spec §4.12 step 8).
func (s *Service) runWithRetry(ctx context.Context, path string, cfg FolderConfig) bool {
	for attempt := 0; attempt <= maxRetryAttempts; attempt++ {
		if err := s.Processor.ProcessOne(ctx, path, cfg.Settings); err == nil {
			return true
		}
		if attempt < maxRetryAttempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(backoffForAttempt(attempt + 1)):
			}
		}
	}
	return false
}
