package toolrunner

import (
	"fmt"
	"context"
	"os"

	"github.com/imageopt/engine/internal/apperrors"
)

// pngquantSkipExitCode is pngquant's documented exit code for "image
// couldn't be compressed without exceeding file size requirements", used
// here with --skip-if-larger (spec §4.1/§7): not a failure, a skip.
const pngquantSkipExitCode = 99

// PNGQuant wraps the pngquant binary for lossy PNG palette quantization.
type PNGQuant struct {
	resolver *Resolver
}

// NewPNGQuant creates a PNGQuant runner.
func NewPNGQuant(resolver *Resolver) *PNGQuant { return &PNGQuant{resolver: resolver} }

// Result carries pngquant's outcome: either encoded bytes, or Skipped=true
// when pngquant reports the output would be larger than the input.
type Result struct {
	Data    []byte
	Skipped bool
}

// Encode runs `pngquant --quality min-max --speed 1 --skip-if-larger [--strip]`.
func (p *PNGQuant) Encode(ctx context.Context, png []byte, qualityMin, qualityMax int, strip bool) (Result, error) {
	bin, err := p.resolver.Resolve("pngquant")
	if err != nil {
		return Result{}, err
	}

	inPath, err := writeTemp("", "imageopt-pngquant-in-*.png", png)
	if err != nil {
		return Result{}, apperrors.New(apperrors.CategoryEncode, "pngquant.encode", err)
	}
	defer os.Remove(inPath)

	outPath := inPath + ".out.png"
	defer os.Remove(outPath)

	args := []string{
		"--quality", fmt.Sprintf("%d-%d", qualityMin, qualityMax),
		"--speed", "1",
		"--skip-if-larger",
		"--force",
		"--output", outPath,
	}
	if strip {
		args = append(args, "--strip")
	}
	args = append(args, inPath)

	_, stderr, exitCode, runErr := run(ctx, bin, args)
	if runErr != nil {
		return Result{}, apperrors.New(apperrors.CategoryEncode, "pngquant.encode", runErr)
	}
	if exitCode == pngquantSkipExitCode {
		return Result{Skipped: true}, nil
	}
	if exitCode != 0 {
		return Result{}, apperrors.New(apperrors.CategoryEncode, "pngquant.encode",
			&ToolError{Tool: "pngquant", ExitCode: exitCode, Detail: string(stderr)})
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return Result{}, apperrors.New(apperrors.CategoryEncode, "pngquant.encode", err)
	}
	return Result{Data: out}, nil
}
