package responsive

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/imageopt/engine/internal/imageio"
)

// ManifestEntry describes one rendered derivative for the JSON manifest.
type ManifestEntry struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
}

// Manifest is the JSON sidecar listing every derivative produced for a
// source image (spec §4.8).
type Manifest struct {
	Source  string          `json:"source"`
	Sizes   string          `json:"sizes"`
	Entries []ManifestEntry `json:"entries"`
}

// BuildManifest pairs rendered derivatives with their written output paths.
func BuildManifest(source, sizes string, rendered []Rendered, paths []string) Manifest {
	entries := make([]ManifestEntry, 0, len(rendered))
	for i, r := range rendered {
		entries = append(entries, ManifestEntry{
			Path:   paths[i],
			Width:  r.Width,
			Height: r.Height,
			Format: string(r.Format),
			Bytes:  len(r.Data),
		})
	}
	return Manifest{Source: source, Sizes: sizes, Entries: entries}
}

// ToJSON renders the manifest as indented JSON, ready to write to disk.
func (m Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Sizes resolves the "sizes" attribute from a named template or a custom
// string override (spec §4.8).
func Sizes(sizesTemplate, customSizes string) string {
	if customSizes != "" {
		return customSizes
	}
	switch sizesTemplate {
	case "full-width":
		return "100vw"
	case "half-width":
		return "(min-width: 768px) 50vw, 100vw"
	case "third-width":
		return "(min-width: 1024px) 33vw, (min-width: 768px) 50vw, 100vw"
	default:
		return "100vw"
	}
}

// ImgSrcset renders a flat <img srcset=… sizes=…> snippet (spec §4.8).
func ImgSrcset(rendered []Rendered, paths []string, sizes string, fallbackFormat imageio.Format) string {
	var srcset []string
	var fallbackPath string
	var fallbackWidth int
	for i, r := range rendered {
		if r.Format != fallbackFormat {
			continue
		}
		srcset = append(srcset, fmt.Sprintf("%s %s", paths[i], widthDescriptor(r.Derivative)))
		if r.Width > fallbackWidth {
			fallbackPath, fallbackWidth = paths[i], r.Width
		}
	}
	sort.Strings(srcset)
	return fmt.Sprintf(`<img src="%s" srcset="%s" sizes="%s" alt="">`,
		fallbackPath, strings.Join(srcset, ", "), sizes)
}

// Picture renders a <picture> element with a WebP <source> and a
// format-appropriate <img> fallback (spec §4.8).
func Picture(rendered []Rendered, paths []string, sizes string, fallbackFormat imageio.Format) string {
	var webpSet, fallbackSet []string
	var fallbackPath string
	var fallbackWidth int
	for i, r := range rendered {
		desc := widthDescriptor(r.Derivative)
		switch r.Format {
		case imageio.FormatWebP:
			webpSet = append(webpSet, fmt.Sprintf("%s %s", paths[i], desc))
		case fallbackFormat:
			fallbackSet = append(fallbackSet, fmt.Sprintf("%s %s", paths[i], desc))
			if r.Width > fallbackWidth {
				fallbackPath, fallbackWidth = paths[i], r.Width
			}
		}
	}
	sort.Strings(webpSet)
	sort.Strings(fallbackSet)

	var b strings.Builder
	b.WriteString("<picture>\n")
	if len(webpSet) > 0 {
		fmt.Fprintf(&b, `  <source type="image/webp" srcset="%s" sizes="%s">`+"\n", strings.Join(webpSet, ", "), sizes)
	}
	if len(fallbackSet) > 0 {
		fmt.Fprintf(&b, `  <source srcset="%s" sizes="%s">`+"\n", strings.Join(fallbackSet, ", "), sizes)
	}
	fmt.Fprintf(&b, `  <img src="%s" alt="">`+"\n", fallbackPath)
	b.WriteString("</picture>")
	return b.String()
}

// widthDescriptor renders the srcset descriptor: "{w}w" in width mode,
// "{dpr}x" in dpr mode.
func widthDescriptor(d Derivative) string {
	if d.DPR > 0 {
		return strconv.Itoa(int(d.DPR)) + "x"
	}
	return strconv.Itoa(d.Width) + "w"
}
