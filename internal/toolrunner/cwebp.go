package toolrunner

import (
	"context"
	"os"

	"github.com/imageopt/engine/internal/apperrors"
)

// CWebP wraps the cwebp binary.
type CWebP struct {
	resolver *Resolver
}

// NewCWebP creates a CWebP runner.
func NewCWebP(resolver *Resolver) *CWebP { return &CWebP{resolver: resolver} }

// EncodeOptions carries cwebp's per-call parameters (spec §4.1).
type EncodeOptions struct {
	Quality      int
	Effort       int // -m, 0-6
	NearLossless bool
	KeepMetadata bool
}

// Encode runs `cwebp -m effort -metadata {all|none} -q q input -o output`,
// or `-near_lossless q -q 100` when NearLossless is set.
func (c *CWebP) Encode(ctx context.Context, src []byte, opts EncodeOptions) ([]byte, error) {
	bin, err := c.resolver.Resolve("cwebp")
	if err != nil {
		return nil, err
	}

	inPath, err := writeTemp("", "imageopt-cwebp-in-*.png", src)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "cwebp.encode", err)
	}
	defer os.Remove(inPath)

	outPath := inPath + ".webp"
	defer os.Remove(outPath)

	metadata := "none"
	if opts.KeepMetadata {
		metadata = "all"
	}

	args := []string{"-m", itoa(opts.Effort), "-metadata", metadata}
	if opts.NearLossless {
		args = append(args, "-near_lossless", itoa(opts.Quality), "-q", "100")
	} else {
		args = append(args, "-q", itoa(opts.Quality))
	}
	args = append(args, inPath, "-o", outPath)

	_, stderr, exitCode, runErr := run(ctx, bin, args)
	if runErr != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "cwebp.encode", runErr)
	}
	if exitCode != 0 {
		return nil, apperrors.New(apperrors.CategoryEncode, "cwebp.encode",
			&ToolError{Tool: "cwebp", ExitCode: exitCode, Detail: string(stderr)})
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "cwebp.encode", err)
	}
	return out, nil
}
