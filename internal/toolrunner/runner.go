// Package toolrunner wraps the external encoder binaries (MozJPEG's cjpeg,
// pngquant, oxipng, cwebp) as thin process-spawning adapters with argument
// normalization and exit-code classification (spec §4.1). The contract is
// narrow — encode(input, opts) -> bytes | ToolError — so a future
// native-binding implementation can satisfy the same interface; see
// SPEC_FULL.md DOMAIN STACK and DESIGN.md for why subprocesses were kept.
package toolrunner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/imageopt/engine/internal/apperrors"
)

// itoa formats an int as a decimal string, shared by the per-tool argument
// builders below.
func itoa(n int) string { return strconv.Itoa(n) }

// maxCaptureBytes bounds stdout/stderr capture to guard against runaway
// subprocess output (spec §5, "8 MiB stdout/stderr buffer bounds OOM risk").
const maxCaptureBytes = 8 * 1024 * 1024

// ToolError describes a non-zero subprocess exit.
type ToolError struct {
	Tool     string
	ExitCode int
	Detail   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, e.Detail)
}

// Resolver locates external tool binaries from a small candidate list:
// cwd-relative, a packaged "resources/bin" directory alongside the running
// binary, and the parent directory — then falls back to PATH.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]string
	// ExtraDirs are searched before the built-in candidate list, letting
	// callers (tests, packaging) point at a specific bin directory.
	ExtraDirs []string
}

// NewResolver creates a Resolver.
func NewResolver(extraDirs ...string) *Resolver {
	return &Resolver{cache: make(map[string]string), ExtraDirs: extraDirs}
}

// Resolve finds the absolute path to a named tool binary (e.g. "cjpeg").
// Missing binary is a hard error (spec §4.1: "aborts the candidate class,
// but not the whole job").
func (r *Resolver) Resolve(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache[name]; ok {
		return p, nil
	}

	candidates := make([]string, 0, len(r.ExtraDirs)+4)
	candidates = append(candidates, r.ExtraDirs...)

	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, cwd, filepath.Join(cwd, "..", "resources", "bin"))
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates, filepath.Join(dir, "resources", "bin"), filepath.Dir(dir))
	}

	for _, dir := range candidates {
		full := filepath.Join(dir, name)
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			r.cache[name] = full
			return full, nil
		}
	}

	if p, err := exec.LookPath(name); err == nil {
		r.cache[name] = p
		return p, nil
	}

	return "", apperrors.New(apperrors.CategoryEncode, "toolrunner.Resolve",
		fmt.Errorf("binary %q not found on candidate paths or PATH", name))
}

// run spawns bin with args, capturing stdout/stderr up to maxCaptureBytes.
func run(ctx context.Context, bin string, args []string) (stdout, stderr []byte, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var outBuf, errBuf limitedBuffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	exitCode = 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return outBuf.buf.Bytes(), errBuf.buf.Bytes(), -1, runErr
		}
	}
	return outBuf.buf.Bytes(), errBuf.buf.Bytes(), exitCode, nil
}

// limitedBuffer caps how much subprocess output we retain in memory.
type limitedBuffer struct {
	buf bytes.Buffer
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	remaining := maxCaptureBytes - l.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard silently once the cap is hit
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	return l.buf.Write(p)
}

// writeTemp writes data to a new temp file in dir with the given extension
// and returns its path; caller must remove it.
func writeTemp(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil {
		os.Remove(name)
		return "", werr
	}
	if cerr != nil {
		os.Remove(name)
		return "", cerr
	}
	return name, nil
}
