// Package pathplan implements the Path Planner: derives an output path from
// an input path, a common root, the output mode, a naming template, and the
// produced format (spec §4.7). Grounded on theweak1-file-maintenance's
// backupDestPath (relative-path preservation under a root, with an
// escape guard).
package pathplan

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/imageio"
)

// Request carries everything the planner needs to derive one output path.
type Request struct {
	Input          string
	CommonRoot     string
	OutputMode     config.OutputMode
	NamingTemplate string // e.g. "{name}", "{name}-{scale}"; empty means "{name}"
	OutputFormat   imageio.Format
	Width, Height  int
}

// optimizedDirName is the subfolder-mode output directory, relative to
// CommonRoot (spec §4.7, and the ignore list in spec §5).
const optimizedDirName = "Optimized"

// Plan derives the output path for req, resolving naming-template
// variables and extension rules. It does not resolve filesystem collisions;
// call Deconflict with the result to do that.
func Plan(req Request) (string, error) {
	rel, err := filepath.Rel(req.CommonRoot, req.Input)
	if err != nil {
		return "", apperrors.New(apperrors.CategoryUnknown, "pathplan.Plan", err)
	}
	rel = filepath.Clean(rel)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.Wrap(apperrors.CategoryUnknown, "pathplan.Plan", apperrors.ErrPathEscapesRoot)
	}

	ext := extensionFor(req.OutputFormat)
	inExt := filepath.Ext(req.Input)
	baseName := strings.TrimSuffix(filepath.Base(req.Input), inExt)

	name := renderTemplate(req.NamingTemplate, baseName, req.Input, ext, req.Width, req.Height, req.OutputFormat)

	switch req.OutputMode {
	case config.OutputReplace:
		if imageio.FromExtension(inExt) == imageio.FormatTIFF {
			return "", apperrors.New(apperrors.CategoryUnsupported, "pathplan.Plan",
				fmt.Errorf("replace mode on TIFF input is unsupported: extension change required"))
		}
		dir := filepath.Dir(req.Input)
		return filepath.Join(dir, name+ext), nil

	case config.OutputSubfolder:
		fallthrough
	default:
		relDir := filepath.Dir(rel)
		outDir := filepath.Join(req.CommonRoot, optimizedDirName, relDir)
		return filepath.Join(outDir, name+ext), nil
	}
}

// extensionFor returns the file extension for a produced format, per spec
// §4.7's "jpeg -> .jpg, else format name" rule.
func extensionFor(f imageio.Format) string {
	return f.Ext()
}

// renderTemplate substitutes {name} {ext} {width} {height} {scale} {format}
// {hash} in tpl. An empty tpl defaults to "{name}".
func renderTemplate(tpl, baseName, inputPath, ext string, width, height int, format imageio.Format) string {
	if tpl == "" {
		tpl = "{name}"
	}
	scale := scaleHeuristic(inputPath, width, height)
	hash := strconv.FormatUint(xxhash.Sum64String(inputPath), 16)[:8]

	replacer := strings.NewReplacer(
		"{name}", baseName,
		"{ext}", strings.TrimPrefix(ext, "."),
		"{width}", strconv.Itoa(width),
		"{height}", strconv.Itoa(height),
		"{scale}", scale,
		"{format}", string(format),
		"{hash}", hash,
	)
	return replacer.Replace(tpl)
}

// scaleHeuristic implements spec §4.7's best-effort @2x detection: a
// filename already tagged "@2x" in its stem, or both dimensions even.
func scaleHeuristic(inputPath string, width, height int) string {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	if strings.Contains(stem, "@2x") {
		return "@2x"
	}
	if width > 0 && height > 0 && width%2 == 0 && height%2 == 0 {
		return "@2x"
	}
	return "@1x"
}

// Deconflict appends "-2", "-3", ... to path's base name until no file
// exists at the candidate location (spec §4.7).
func Deconflict(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	} else if err != nil {
		return "", apperrors.New(apperrors.CategoryUnknown, "pathplan.Deconflict", err)
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	for i := 2; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", apperrors.New(apperrors.CategoryUnknown, "pathplan.Deconflict", err)
		}
	}
}
