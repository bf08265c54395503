package toolrunner

import (
	"context"
	"os"

	"github.com/imageopt/engine/internal/apperrors"
)

// MozJPEG wraps the cjpeg binary. cjpeg refuses JPEG input, so callers must
// supply a pre-decoded P6 PPM buffer (spec §4.1).
type MozJPEG struct {
	resolver *Resolver
}

// NewMozJPEG creates a MozJPEG runner using resolver for binary lookup.
func NewMozJPEG(resolver *Resolver) *MozJPEG { return &MozJPEG{resolver: resolver} }

// Encode runs `cjpeg -quality q -progressive -optimize` over ppm, returning
// the encoded JPEG bytes.
func (m *MozJPEG) Encode(ctx context.Context, ppm []byte, quality int) ([]byte, error) {
	bin, err := m.resolver.Resolve("cjpeg")
	if err != nil {
		return nil, err
	}

	inPath, err := writeTemp("", "imageopt-mozjpeg-in-*.ppm", ppm)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "mozjpeg.encode", err)
	}
	defer os.Remove(inPath)

	outPath := inPath + ".jpg"
	defer os.Remove(outPath)

	args := []string{
		"-quality", itoa(quality),
		"-progressive",
		"-optimize",
		"-outfile", outPath,
		inPath,
	}

	_, stderr, exitCode, runErr := run(ctx, bin, args)
	if runErr != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "mozjpeg.encode", runErr)
	}
	if exitCode != 0 {
		return nil, apperrors.New(apperrors.CategoryEncode, "mozjpeg.encode",
			&ToolError{Tool: "cjpeg", ExitCode: exitCode, Detail: string(stderr)})
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "mozjpeg.encode", err)
	}
	return out, nil
}
