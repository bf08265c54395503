// Command imageopt is the CLI entry point exercising the engine's external
// interfaces: StartRun, CancelRun, RestoreLastRun, CanRestoreLastRun,
// ScanPaths, and Preview (spec §6). Grounded on the teacher's examples/main.go
// wiring shape (config -> processor -> backend -> hooks -> run), adapted from
// a fixed demo script into a subcommand-dispatching CLI.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/imageopt/engine/internal/candidate"
	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/coordinator"
	"github.com/imageopt/engine/internal/ilog"
	"github.com/imageopt/engine/internal/imageio"
	"github.com/imageopt/engine/internal/toolrunner"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := ilog.NewConsole(slog.LevelInfo)

	switch os.Args[1] {
	case "run":
		cmdRun(logger, os.Args[2:])
	case "restore":
		cmdRestore(logger, os.Args[2:])
	case "can-restore":
		cmdCanRestore(os.Args[2:])
	case "scan":
		cmdScan(os.Args[2:])
	case "preview":
		cmdPreview(logger, os.Args[2:])
	case "config":
		cmdConfig(os.Args[2:])
	case "presets":
		cmdPresets(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: imageopt <run|restore|can-restore|scan|preview|config|presets> [flags] [paths...]")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + config.WatchConfigFileName
	}
	return fmt.Sprintf("%s/imageopt/%s", dir, config.WatchConfigFileName)
}

func defaultPresetPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + config.PresetFileName
	}
	return fmt.Sprintf("%s/imageopt/%s", dir, config.PresetFileName)
}

// cmdConfig implements GetGlobalWatchSettings/UpdateGlobalWatchSettings
// (spec §6): global defaults persisted as JSON to watch-config.json so the
// CLI and a future watch daemon agree without a shared running process.
func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	path := fs.String("path", defaultConfigPath(), "settings file path")
	setQualityMode := fs.String("set-quality-mode", "", "auto|smart|manual (empty = leave unchanged)")
	_ = fs.Parse(args)

	settings, err := config.LoadFile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}

	if *setQualityMode != "" {
		settings.QualityMode = config.QualityMode(*setQualityMode)
		settings = config.Normalize(settings)
		if err := config.SaveFile(*path, settings); err != nil {
			fmt.Fprintln(os.Stderr, "config save failed:", err)
			os.Exit(1)
		}
	}
	printJSON(settings)
}

// cmdPresets manages the ancillary, hand-editable presets.toml file: list
// the presets it defines, or define/update one from flags.
func cmdPresets(args []string) {
	fs := flag.NewFlagSet("presets", flag.ExitOnError)
	path := fs.String("path", defaultPresetPath(), "presets.toml path")
	set := fs.String("set", "", "preset name to define/update (empty = just list)")
	qualityMode := fs.String("quality-mode", "", "auto|smart|manual")
	qualityValue := fs.Int("quality-value", 0, "manual quality 1-100")
	icc := fs.String("icc", "", "keep|convert_srgb|strip")
	_ = fs.Parse(args)

	pf, err := config.LoadPresetFile(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "presets load failed:", err)
		os.Exit(1)
	}

	if *set != "" {
		pf.Preset[*set] = config.PresetOverride{
			QualityMode:  config.QualityMode(*qualityMode),
			QualityValue: *qualityValue,
			ICC:          config.ICCMode(*icc),
		}
		if err := config.SavePresetFile(*path, pf); err != nil {
			fmt.Fprintln(os.Stderr, "presets save failed:", err)
			os.Exit(1)
		}
	}
	printJSON(pf.Names())
}

// applyPresetFlag layers a named presets.toml override onto settings when
// both -preset-file and -use-preset are given; either empty is a no-op.
func applyPresetFlag(settings config.EffectiveSettings, presetFile, usePreset string) config.EffectiveSettings {
	if presetFile == "" || usePreset == "" {
		return settings
	}
	pf, err := config.LoadPresetFile(presetFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "preset file load failed:", err)
		return settings
	}
	out, err := pf.Apply(settings, usePreset)
	if err != nil {
		fmt.Fprintln(os.Stderr, "preset apply failed:", err)
		return settings
	}
	return out
}

func newBuilder() *candidate.Builder {
	resolver := toolrunner.NewResolver()
	encoders := candidate.NewEncoders(resolver)
	return candidate.NewBuilder(encoders, 0)
}

func cmdRun(logger ilog.Logger, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	mode := fs.String("mode", string(coordinator.ModeOptimize), "optimize|convertWebp|optimizeAndWebp|smart|responsive")
	outputMode := fs.String("output", string(config.OutputSubfolder), "subfolder|replace")
	quality := fs.String("quality-mode", string(config.QualityAuto), "auto|smart|manual")
	concurrency := fs.Int("concurrency", 0, "worker count override, 0 = auto")
	allowLarger := fs.Bool("allow-larger", false, "keep output even if not smaller than input")
	confirmReplace := fs.Bool("confirm-dangerous-replace", false, "required to replace originals with a converted format")
	presetFile := fs.String("preset-file", "", "presets.toml path to load -use-preset from (empty = skip)")
	usePreset := fs.String("use-preset", "", "named preset from -preset-file to layer on top of the flags above")
	_ = fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "run: at least one path required")
		os.Exit(2)
	}

	settings := config.Default()
	settings.OutputMode = config.OutputMode(*outputMode)
	settings.QualityMode = config.QualityMode(*quality)
	settings.Concurrency = *concurrency
	settings.AllowLarger = *allowLarger
	settings.ConfirmDangerousReplace = *confirmReplace
	settings = config.Normalize(settings)
	settings = applyPresetFlag(settings, *presetFile, *usePreset)

	coord := coordinator.New(newBuilder(), logger, settings.Concurrency)

	ctx, cancel := signalContext()
	defer cancel()

	runID, err := coord.StartRun(ctx, coordinator.RunRequest{
		Paths:    paths,
		Mode:     coordinator.Mode(*mode),
		Settings: settings,
	}, func(ev coordinator.ProgressEvent) {
		logger.Info("job event", "job_id", ev.JobID, "status", string(ev.Status), "stage", string(ev.Stage))
	}, func(summary coordinator.Summary) {
		printJSON(summary)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "run failed to start:", err)
		os.Exit(1)
	}
	fmt.Println("run_id:", runID)

	<-ctx.Done()
}

func cmdRestore(logger ilog.Logger, args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	base := fs.String("base", ".", "directory holding .imageopt/last-run.json")
	_ = fs.Parse(args)

	restored, failed, message, err := coordinator.Restore(*base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore failed:", err)
		os.Exit(1)
	}
	printJSON(map[string]any{"restored_count": restored, "failed_count": failed, "message": message})
}

func cmdCanRestore(args []string) {
	fs := flag.NewFlagSet("can-restore", flag.ExitOnError)
	base := fs.String("base", ".", "directory holding .imageopt/last-run.json")
	_ = fs.Parse(args)

	printJSON(map[string]bool{"can_restore": coordinator.CanRestore(*base)})
}

// scanEntry mirrors spec §6's ScanPaths result shape.
type scanEntry struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Ext    string `json:"ext"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func cmdScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	_ = fs.Parse(args)

	found, err := coordinator.Discover(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan failed:", err)
		os.Exit(1)
	}

	entries := make([]scanEntry, 0, len(found))
	for _, p := range found {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		entry := scanEntry{Path: p, Name: info.Name(), Size: info.Size(), Ext: filepathExt(p)}
		if raw, err := os.ReadFile(p); err == nil {
			if decoded, err := imageio.Decode(raw); err == nil {
				entry.Width, entry.Height = decoded.Meta.Width, decoded.Meta.Height
			}
		}
		entries = append(entries, entry)
	}
	printJSON(entries)
}

// previewResult mirrors spec §6's Preview result shape (buffer omitted from
// the printed JSON — only its size is meaningful on a terminal).
type previewResult struct {
	Size         int     `json:"size"`
	QualityLabel string  `json:"quality_label"`
	SSIM         float64 `json:"ssim"`
}

func cmdPreview(logger ilog.Logger, args []string) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	quality := fs.String("quality-mode", string(config.QualitySmart), "auto|smart|manual")
	presetFile := fs.String("preset-file", "", "presets.toml path to load -use-preset from (empty = skip)")
	usePreset := fs.String("use-preset", "", "named preset from -preset-file to layer on top of the flags above")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "preview: exactly one path required")
		os.Exit(2)
	}
	path := fs.Arg(0)

	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "preview failed:", err)
		os.Exit(1)
	}
	decoded, err := imageio.Decode(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "preview failed:", err)
		os.Exit(1)
	}
	decoded.Meta.SizeBytes = int64(len(raw))
	features := imageio.Analyze(decoded.Image)

	settings := config.Default()
	settings.QualityMode = config.QualityMode(*quality)
	settings = config.Normalize(settings)
	settings = applyPresetFlag(settings, *presetFile, *usePreset)

	builder := newBuilder()
	outcome, err := builder.Build(context.Background(), decoded, features, settings, decoded.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "preview failed:", err)
		os.Exit(1)
	}
	if outcome.Skipped || outcome.Selected == nil {
		printJSON(map[string]string{"skip_reason": outcome.SkipReason})
		return
	}
	printJSON(previewResult{
		Size:         len(outcome.Selected.Data),
		QualityLabel: outcome.Selected.QualityLabel,
		SSIM:         outcome.Selected.SSIM,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func filepathExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}
