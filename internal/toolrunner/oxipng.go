package toolrunner

import (
	"context"
	"os"

	"github.com/imageopt/engine/internal/apperrors"
)

// Oxipng wraps the oxipng binary for lossless PNG optimization.
type Oxipng struct {
	resolver *Resolver
}

// NewOxipng creates an Oxipng runner.
func NewOxipng(resolver *Resolver) *Oxipng { return &Oxipng{resolver: resolver} }

// Encode runs `oxipng -o 4 --out target [--strip all]`.
func (o *Oxipng) Encode(ctx context.Context, png []byte, stripAll bool) ([]byte, error) {
	bin, err := o.resolver.Resolve("oxipng")
	if err != nil {
		return nil, err
	}

	inPath, err := writeTemp("", "imageopt-oxipng-in-*.png", png)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "oxipng.encode", err)
	}
	defer os.Remove(inPath)

	outPath := inPath + ".out.png"
	defer os.Remove(outPath)

	args := []string{"-o", "4", "--out", outPath}
	if stripAll {
		args = append(args, "--strip", "all")
	}
	args = append(args, inPath)

	_, stderr, exitCode, runErr := run(ctx, bin, args)
	if runErr != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "oxipng.encode", runErr)
	}
	if exitCode != 0 {
		return nil, apperrors.New(apperrors.CategoryEncode, "oxipng.encode",
			&ToolError{Tool: "oxipng", ExitCode: exitCode, Detail: string(stderr)})
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "oxipng.encode", err)
	}
	return out, nil
}
