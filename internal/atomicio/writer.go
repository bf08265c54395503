// Package atomicio implements the Atomic Writer: temp-file + validate +
// rename, with an optional backup capture (spec §4.6). Grounded on
// theweak1-file-maintenance's copyfileStream (temp-file + close + rename,
// cleanup-on-failure via a closeOK flag) and buildBackupPath/backupDestPath
// (relative-path preservation with an escape guard).
package atomicio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/imageio"
)

// maxBaseNameLen truncates the temp file's base name to respect the 255-byte
// path-component limit on very long filenames (spec §8 boundary behavior).
const maxBaseNameLen = 80

// Validator confirms a written buffer decodes as the expected format before
// the write is finalized.
type Validator func(data []byte, expected imageio.Format) error

// DefaultValidator decodes data and checks its format matches expected, and
// that it is non-empty.
func DefaultValidator(data []byte, expected imageio.Format) error {
	if len(data) == 0 {
		return apperrors.New(apperrors.CategoryWrite, "atomicio.validate", fmt.Errorf("empty buffer"))
	}
	d, err := imageio.Decode(data)
	if err != nil {
		return apperrors.New(apperrors.CategoryWrite, "atomicio.validate", err)
	}
	if d.Format != expected {
		return apperrors.New(apperrors.CategoryWrite, "atomicio.validate",
			fmt.Errorf("decoded format %q does not match expected %q", d.Format, expected))
	}
	return nil
}

// Write performs the atomic write: ensure parent dir, validate the buffer,
// write it to a sibling temp file, optionally back up the existing target, then rename
// over it (spec §4.6). On any failure the temp file is removed and the
// original target is left untouched.
//
// backupDir, when non-empty, receives a copy of the pre-existing target
// (if any) before it is overwritten; backupPath is returned so the caller
// can record a BackupRecord.
func Write(targetPath string, data []byte, expectedFormat imageio.Format, validate Validator, backupDir string) (backupPath string, err error) {
	if validate == nil {
		validate = DefaultValidator
	}

	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.Write", err)
	}

	if err := validate(data, expectedFormat); err != nil {
		return "", err
	}

	tmpPath := tempPath(targetPath)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.Write", err)
	}

	closeOK := false
	defer func() {
		if !closeOK {
			_ = f.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.Write", err)
	}
	if err := f.Close(); err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.Write", err)
	}
	closeOK = true

	if backupDir != "" {
		if _, statErr := os.Stat(targetPath); statErr == nil {
			backupPath, err = backupExisting(targetPath, backupDir)
			if err != nil {
				_ = os.Remove(tmpPath)
				return "", err
			}
		}
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.Write", err)
	}

	return backupPath, nil
}

// tempPath builds "<target>.<base36 unix-nanos>.<pid>.tmp" in the same directory so
// the final rename is atomic (same filesystem), truncating a very long base
// name to respect path-length limits.
func tempPath(targetPath string) string {
	dir := filepath.Dir(targetPath)
	base := filepath.Base(targetPath)
	if len(base) > maxBaseNameLen {
		base = base[:maxBaseNameLen]
	}
	suffix := strconv.FormatInt(time.Now().UnixNano(), 36) + "." + strconv.Itoa(os.Getpid())
	return filepath.Join(dir, base+"."+suffix+".tmp")
}

// backupExisting copies the current target into backupDir, encoding the
// original path into the backup filename so multiple inputs don't collide.
func backupExisting(targetPath, backupDir string) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.backupExisting", err)
	}
	name := pathSafeName(targetPath) + ".bak"
	dst := filepath.Join(backupDir, name)

	src, err := os.Open(targetPath)
	if err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.backupExisting", err)
	}
	defer src.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.backupExisting", err)
	}
	closeOK := false
	defer func() {
		_ = out.Close()
		if !closeOK {
			_ = os.Remove(tmp)
		}
	}()

	buf := make([]byte, 256*1024)
	if _, err := io.CopyBuffer(out, src, buf); err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.backupExisting", err)
	}
	if err := out.Close(); err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.backupExisting", err)
	}
	closeOK = true

	if err := os.Rename(tmp, dst); err != nil {
		return "", apperrors.New(apperrors.CategoryWrite, "atomicio.backupExisting", err)
	}
	return dst, nil
}

// pathSafeName encodes an absolute path into a single safe filename
// component (spec §6: "<path-safe-original-name>").
func pathSafeName(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = p
	}
	replacer := strings.NewReplacer(string(filepath.Separator), "_", ":", "_")
	return strings.TrimPrefix(replacer.Replace(abs), "_")
}
