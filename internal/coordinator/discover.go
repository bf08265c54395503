// Package coordinator implements the Run Coordinator: input resolution,
// common-root computation, backup/log directory allocation, job dispatch
// and aggregation, and last-run persistence/restore (spec §4.11). Grounded
// on the teacher's core.Processor.Batch fan-out and
// theweak1-file-maintenance's Worker bounded-walker/ignore-list pattern.
package coordinator

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/imageopt/engine/internal/imageio"
)

// ignoredDirNames and ignoredFileNames implement spec §5/§6's recognized
// ignore list for the directory walk.
var ignoredDirNames = map[string]bool{
	"node_modules":      true,
	".git":              true,
	".optimise-backup":  true,
	".optimise-tmp":     true,
	"Optimized":         true,
	"Originals Backup":  true,
	".optimise-logs":    true,
}

var ignoredFileNames = map[string]bool{
	"Thumbs.db":   true,
	"Desktop.ini": true,
	".DS_Store":   true,
}

var partialSuffixes = []string{".tmp", ".part", ".crdownload", ".download"}

var supportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".tif": true, ".tiff": true,
}

// shouldIgnoreDir reports whether a directory entry name should be skipped
// entirely during the walk (spec §5).
func shouldIgnoreDir(name string) bool {
	if ignoredDirNames[name] {
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// shouldIgnoreFile reports whether a file should be dropped from candidacy:
// system junk, partial downloads, dotfiles, tilde-backups (spec §5/§6).
func shouldIgnoreFile(name string) bool {
	if ignoredFileNames[name] {
		return true
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") || strings.HasPrefix(name, "._") {
		return true
	}
	lower := strings.ToLower(name)
	for _, suf := range partialSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

// isSupportedExtension reports whether ext (including leading dot, any case)
// is one of the recognized input formats (spec §6).
func isSupportedExtension(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// Discover walks each root path (file or directory), applying the ignore
// rules and extension allowlist, and returns the resolved candidate file
// paths in a stable, sorted order.
func Discover(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			continue // a missing/unreadable root is dropped, not fatal (spec §7: per-file errors don't abort a run)
		}
		if !info.IsDir() {
			if isCandidate(root) && !seen[root] {
				seen[root] = true
				out = append(out, root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil // non-fatal per theweak1's walker pattern: log-and-continue, not surfaced here
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && shouldIgnoreDir(name) {
					return filepath.SkipDir
				}
				return nil
			}
			if isCandidate(path) && !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(out)
	return out, nil
}

func isCandidate(path string) bool {
	name := filepath.Base(path)
	if shouldIgnoreFile(name) {
		return false
	}
	return isSupportedExtension(filepath.Ext(path))
}

// CommonRoot computes the longest shared directory prefix across paths
// (spec §4.11 step 2).
func CommonRoot(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	abs := make([]string, len(paths))
	for i, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			a = p
		}
		abs[i] = filepath.Dir(a)
	}

	common := strings.Split(filepath.ToSlash(abs[0]), "/")
	for _, p := range abs[1:] {
		parts := strings.Split(filepath.ToSlash(p), "/")
		common = commonPrefix(common, parts)
		if len(common) == 0 {
			break
		}
	}
	if len(common) == 0 {
		return string(filepath.Separator)
	}
	return filepath.FromSlash(strings.Join(common, "/"))
}

func commonPrefix(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// DetectFormatFromPath is a thin convenience wrapper for coordinator callers
// that only have a path, not decoded bytes, in hand.
func DetectFormatFromPath(path string) imageio.Format {
	return imageio.FromExtension(filepath.Ext(path))
}
