package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/atomicio"
	"github.com/imageopt/engine/internal/candidate"
	"github.com/imageopt/engine/internal/config"
	"github.com/imageopt/engine/internal/ilog"
	"github.com/imageopt/engine/internal/imageio"
	"github.com/imageopt/engine/internal/job"
	"github.com/imageopt/engine/internal/metadata"
	"github.com/imageopt/engine/internal/pathplan"
	"github.com/imageopt/engine/internal/pool"
	"github.com/imageopt/engine/internal/responsive"
)

// Mode selects the top-level behavior a run performs on each file
// (spec §3's RunRequest.run-mode).
type Mode string

const (
	ModeOptimize         Mode = "optimize"
	ModeConvertWebP      Mode = "convertWebp"
	ModeOptimizeAndWebP  Mode = "optimizeAndWebp"
	ModeSmart            Mode = "smart"
	ModeResponsive       Mode = "responsive"
)

// RunRequest is the external StartRun input (spec §6).
type RunRequest struct {
	Paths    []string
	Mode     Mode
	Settings config.EffectiveSettings
}

// ProgressEvent is the coordinator-level event emitted for each FileJob
// transition, matching spec §6's progress event schema.
type ProgressEvent struct {
	JobID     string
	InputPath string
	Status    job.Status
	Stage     job.Stage
	Result    *job.Result
}

// Run tracks one in-flight or completed StartRun invocation.
type Run struct {
	ID         string
	Request    RunRequest
	CommonRoot string
	BackupDir  string
	LogDir     string

	startedAt time.Time

	cancelled atomic.Bool
	cancel    context.CancelFunc

	mu       sync.Mutex
	entries  []RunLogEntry
	failures []FailureEntry
	backups  []BackupRecord

	totalFiles     int
	processedFiles int
	convertedFiles int
	skippedFiles   int
	failedFiles    int
	origBytes      int64
	outBytes       int64

	onEvent func(ProgressEvent)
}

// Coordinator wires a Pool, a Candidate Builder, and a Logger to run
// StartRun/CancelRun/RestoreLastRun (spec §4.11).
type Coordinator struct {
	Pool       *pool.Pool
	Builder    *candidate.Builder
	Responsive *responsive.Renderer
	Logger     ilog.Logger

	mu   sync.Mutex
	runs map[string]*Run
}

// New creates a Coordinator. workerCount <= 0 uses spec §4.10's default
// formula.
func New(builder *candidate.Builder, logger ilog.Logger, workerCount int) *Coordinator {
	if logger == nil {
		logger = ilog.Nop{}
	}
	return &Coordinator{
		Pool:       pool.New(pool.WorkerCount(workerCount), 256),
		Builder:    builder,
		Responsive: responsive.NewRenderer(builder, pool.WorkerCount(workerCount)),
		Logger:     logger,
		runs:       make(map[string]*Run),
	}
}

// newRunID derives a sortable, collision-resistant run id from the current
// time plus a digest of the requested paths.
func newRunID(paths []string) string {
	h := xxhash.New()
	for _, p := range paths {
		_, _ = h.Write([]byte(p))
	}
	return time.Now().UTC().Format("20060102T150405") + "-" + strconv.FormatUint(h.Sum64(), 36)[:6]
}

// isDangerousReplace reports whether req would overwrite originals in
// place while also changing their format (e.g. to WebP), which requires an
// explicit confirmation per spec's Supplemented Features #4.
func isDangerousReplace(req RunRequest) bool {
	if req.Settings.OutputMode != config.OutputReplace {
		return false
	}
	return req.Mode == ModeConvertWebP || req.Mode == ModeOptimizeAndWebP
}

// StartRun resolves inputs, allocates run directories, constructs FileJobs,
// submits them to the pool, and returns the run id immediately; progress and
// completion are delivered via onEvent/onSummary (spec §4.11, §6).
func (c *Coordinator) StartRun(ctx context.Context, req RunRequest, onEvent func(ProgressEvent), onSummary func(Summary)) (string, error) {
	if isDangerousReplace(req) && !req.Settings.ConfirmDangerousReplace {
		return "", apperrors.Wrap(apperrors.CategoryUnknown, "coordinator.StartRun", apperrors.ErrConfirmRequired)
	}

	paths, err := Discover(req.Paths)
	if err != nil {
		return "", apperrors.New(apperrors.CategoryUnknown, "coordinator.StartRun", err)
	}

	runID := newRunID(req.Paths)
	commonRoot := CommonRoot(paths)
	logDir := filepath.Join(commonRoot, ".optimise-logs", runID)
	var backupDir string
	if req.Settings.OutputMode == config.OutputReplace {
		backupDir = filepath.Join(commonRoot, "Originals Backup", runID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:         runID,
		Request:    req,
		CommonRoot: commonRoot,
		BackupDir:  backupDir,
		LogDir:     logDir,
		startedAt:  time.Now(),
		cancel:     cancel,
		onEvent:    onEvent,
		totalFiles: len(paths),
	}

	c.mu.Lock()
	c.runs[runID] = run
	c.mu.Unlock()

	c.Pool.Start(runCtx, pool.WorkerCount(req.Settings.Concurrency))

	for _, p := range paths {
		p := p
		j := job.New(runID+":"+p, p)
		j.OnEvent(func(ev job.Event) {
			run.recordEvent(ev)
			if onEvent != nil {
				onEvent(ProgressEvent{JobID: ev.JobID, InputPath: p, Status: ev.Status, Stage: ev.Stage, Result: ev.Result})
			}
		})

		if err := c.Pool.Submit(func(taskCtx context.Context) {
			defer func() {
				if r := recover(); r != nil {
					_ = j.Fail(apperrors.New(apperrors.CategoryUnknown, "coordinator.runFileJob", fmt.Errorf("worker panic: %v", r)))
					panic(r) // re-panic so the pool's own recover still counts the crash
				}
			}()
			c.runFileJob(taskCtx, run, j)
		}); err != nil {
			_ = j.Skip("pool queue full")
		}
	}

	go func() {
		c.awaitCompletion(run)
		summary := run.finalize()
		if onSummary != nil {
			onSummary(summary)
		}
	}()

	return runID, nil
}

// awaitCompletion polls until every job the run tracked has reached a
// terminal status; a production implementation would use a WaitGroup
// threaded through Submit, kept here as a simple bounded poll for clarity.
func (c *Coordinator) awaitCompletion(run *Run) {
	for {
		run.mu.Lock()
		done := run.processedFiles+run.skippedFiles+run.failedFiles >= run.totalFiles
		run.mu.Unlock()
		if done || run.cancelled.Load() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// CancelRun flips the run's cooperative cancel flag (spec §4.9/§4.11).
func (c *Coordinator) CancelRun(runID string) error {
	c.mu.Lock()
	run, ok := c.runs[runID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("coordinator: unknown run %q", runID)
	}
	run.cancelled.Store(true)
	run.cancel()
	return nil
}

func (run *Run) recordEvent(ev job.Event) {
	run.mu.Lock()
	defer run.mu.Unlock()

	switch ev.Status {
	case job.StatusSuccess:
		run.processedFiles++
		run.convertedFiles++
		if ev.Result != nil {
			run.origBytes += ev.Result.BytesOriginal
			run.outBytes += ev.Result.BytesOutput
			run.entries = append(run.entries, RunLogEntry{Status: string(ev.Status), Output: ev.Result.BytesOutput, Original: ev.Result.BytesOriginal, OutputPath: ev.Result.OutputPath})
		}
	case job.StatusSkipped:
		run.skippedFiles++
		run.entries = append(run.entries, RunLogEntry{Status: string(ev.Status)})
	case job.StatusFailed:
		run.failedFiles++
		msg := ""
		if ev.Result != nil && ev.Result.Err != nil {
			msg = ev.Result.Err.Error()
		}
		run.failures = append(run.failures, FailureEntry{Code: string(apperrors.CategoryOf(errOrNil(ev.Result))), Message: msg})
		run.entries = append(run.entries, RunLogEntry{Status: string(ev.Status), Error: msg})
	case job.StatusCancelled:
		run.skippedFiles++
	}
}

func errOrNil(r *job.Result) error {
	if r == nil {
		return nil
	}
	return r.Err
}

// finalize persists the run log and LastRunState, then returns the summary.
func (run *Run) finalize() Summary {
	run.mu.Lock()
	defer run.mu.Unlock()

	elapsed := time.Since(run.startedAt)
	summary := Summary{
		RunID:              run.ID,
		TotalFiles:         run.totalFiles,
		ProcessedFiles:     run.processedFiles,
		ConvertedFiles:     run.convertedFiles,
		SkippedFiles:       run.skippedFiles,
		FailedFiles:        run.failedFiles,
		TotalOriginalBytes: run.origBytes,
		TotalOutputBytes:   run.outBytes,
		TotalSavedBytes:    run.origBytes - run.outBytes,
		ElapsedMS:          elapsed.Milliseconds(),
		Failures:           run.failures,
	}

	logPath, err := SaveRunLog(run.LogDir, RunLog{
		RunID:      run.ID,
		Mode:       string(run.Request.Mode),
		Settings:   run.Request.Settings,
		StartedAt:  run.startedAt,
		FinishedAt: time.Now(),
		Cancelled:  run.cancelled.Load(),
		Summary:    summary,
		Entries:    run.entries,
	})
	if err == nil {
		summary.LogPath = logPath
	}

	if run.CommonRoot != "" {
		_ = SaveLastRunState(run.CommonRoot, LastRunState{
			RunID:         run.ID,
			BackupDir:     run.BackupDir,
			BackupRecords: run.backups,
			LogPath:       logPath,
		})
	}

	return summary
}

// runFileJob executes spec §4.9's stage sequence for a single file:
// analyzing -> decoding -> transforming -> encoding -> writing ->
// verifying -> cleaning, using the Coordinator's Builder and the Metadata
// Processor, then the Path Planner and Atomic Writer to land the result.
func (c *Coordinator) runFileJob(ctx context.Context, run *Run, j *job.FileJob) {
	if err := j.Start(); err != nil {
		return
	}

	raw, err := os.ReadFile(j.Input)
	if err != nil {
		_ = j.Fail(apperrors.New(apperrors.CategoryUnknown, "coordinator.runFileJob", err))
		return
	}

	if checkCancelled(ctx, run, j) {
		return
	}
	_ = j.Advance(job.StageAnalyzing)
	_ = j.Advance(job.StageDecoding)
	decoded, err := imageio.Decode(raw)
	if err != nil {
		_ = j.Fail(apperrors.New(apperrors.CategoryDecode, "coordinator.runFileJob", err))
		return
	}
	decoded.Meta.SizeBytes = int64(len(raw))
	features := imageio.Analyze(decoded.Image)

	if checkCancelled(ctx, run, j) {
		return
	}
	_ = j.Advance(job.StageTransforming)
	processed, _ := metadata.Process(decoded, run.Request.Settings.Metadata)

	if run.Request.Mode == ModeResponsive {
		c.runResponsiveFileJob(ctx, run, j, raw, processed, features)
		return
	}

	targetFormat := targetFormatFor(run.Request.Mode, processed.Format)

	if checkCancelled(ctx, run, j) {
		return
	}
	_ = j.Advance(job.StageEncoding)
	outcome, err := c.Builder.Build(ctx, processed, features, run.Request.Settings, targetFormat)
	if err != nil {
		_ = j.Fail(apperrors.New(apperrors.CategoryEncode, "coordinator.runFileJob", err))
		return
	}
	if outcome.Skipped || outcome.Selected == nil {
		_ = j.Skip(outcome.SkipReason)
		return
	}

	if checkCancelled(ctx, run, j) {
		return
	}
	_ = j.Advance(job.StageWriting)
	outPath, err := pathplan.Plan(pathplan.Request{
		Input:        j.Input,
		CommonRoot:   run.CommonRoot,
		OutputMode:   run.Request.Settings.OutputMode,
		NamingTemplate: run.Request.Settings.NamingTemplate,
		OutputFormat: targetFormat,
		Width:        decoded.Meta.Width,
		Height:       decoded.Meta.Height,
	})
	if err != nil {
		_ = j.Fail(err)
		return
	}
	outPath, err = pathplan.Deconflict(outPath)
	if err != nil {
		_ = j.Fail(apperrors.New(apperrors.CategoryWrite, "coordinator.runFileJob", err))
		return
	}

	backupPath, err := atomicio.Write(outPath, outcome.Selected.Data, targetFormat, atomicio.DefaultValidator, run.BackupDir)
	if err != nil {
		_ = j.Fail(err)
		return
	}
	if backupPath != "" {
		run.mu.Lock()
		run.backups = append(run.backups, BackupRecord{OriginalPath: outPath, BackupPath: backupPath})
		run.mu.Unlock()
	}

	_ = j.Advance(job.StageVerifying)
	_ = j.Advance(job.StageCleaning)
	_ = j.Succeed(outPath, int64(len(raw)), int64(len(outcome.Selected.Data)))
}

// runResponsiveFileJob implements the Responsive Derivative Engine path
// (spec §4.8): one source file fans out into a set of width/DPR derivatives,
// each written to the path the Path Planner gives for the run's output mode,
// plus a JSON manifest and two HTML snippets (.srcset.html, .picture.html),
// instead of the single-output path the other run modes take.
func (c *Coordinator) runResponsiveFileJob(ctx context.Context, run *Run, j *job.FileJob, raw []byte, processed *imageio.Decoded, features imageio.Features) {
	if checkCancelled(ctx, run, j) {
		return
	}
	_ = j.Advance(job.StageEncoding)

	derivatives := responsive.Plan(run.Request.Settings.Responsive, processed.Meta.Width, processed.Meta.Height)
	derivatives = responsive.ResolveSourceFormat(derivatives, processed.Format)

	rendered, err := c.Responsive.Render(ctx, processed, features, run.Request.Settings, derivatives)
	if err != nil {
		_ = j.Fail(apperrors.New(apperrors.CategoryEncode, "coordinator.runResponsiveFileJob", err))
		return
	}
	if len(rendered) == 0 {
		_ = j.Skip("no responsive derivatives produced")
		return
	}

	if checkCancelled(ctx, run, j) {
		return
	}
	_ = j.Advance(job.StageWriting)

	outPaths := make([]string, 0, len(rendered))
	var totalOut int64
	for _, r := range rendered {
		outPath, err := pathplan.Plan(pathplan.Request{
			Input:          j.Input,
			CommonRoot:     run.CommonRoot,
			OutputMode:     config.OutputSubfolder, // responsive derivatives always land beside/under the source, never replace it
			NamingTemplate: run.Request.Settings.NamingTemplate,
			OutputFormat:   r.Format,
			Width:          r.Width,
			Height:         r.Height,
		})
		if err != nil {
			_ = j.Fail(err)
			return
		}
		outPath, err = pathplan.Deconflict(outPath)
		if err != nil {
			_ = j.Fail(apperrors.New(apperrors.CategoryWrite, "coordinator.runResponsiveFileJob", err))
			return
		}
		if _, err := atomicio.Write(outPath, r.Data, r.Format, atomicio.DefaultValidator, ""); err != nil {
			_ = j.Fail(err)
			return
		}
		outPaths = append(outPaths, outPath)
		totalOut += int64(len(r.Data))
	}

	sizes := responsive.Sizes(run.Request.Settings.Responsive.SizesTemplate, run.Request.Settings.Responsive.CustomSizes)
	manifest := responsive.BuildManifest(j.Input, sizes, rendered, outPaths)
	if manifestJSON, err := manifest.ToJSON(); err == nil {
		manifestPath := outPaths[0] + ".manifest.json"
		_ = writeAtomicFile(manifestPath, manifestJSON)
	}

	fallbackFormat := processed.Format
	for _, r := range rendered {
		if r.IsFallback {
			fallbackFormat = r.Format
			break
		}
	}
	srcset := responsive.ImgSrcset(rendered, outPaths, sizes, fallbackFormat)
	_ = writeAtomicFile(outPaths[0]+".srcset.html", []byte(srcset))
	picture := responsive.Picture(rendered, outPaths, sizes, fallbackFormat)
	_ = writeAtomicFile(outPaths[0]+".picture.html", []byte(picture))

	_ = j.Advance(job.StageVerifying)
	_ = j.Advance(job.StageCleaning)
	_ = j.Succeed(outPaths[0], int64(len(raw)), totalOut)
}

// checkCancelled implements spec §4.9's cooperative cancellation: checked at
// stage boundaries only, never mid external-process-call.
func checkCancelled(ctx context.Context, run *Run, j *job.FileJob) bool {
	if run.cancelled.Load() || ctx.Err() != nil {
		_ = j.Cancel()
		return true
	}
	return false
}

// targetFormatFor resolves the produced format for a file given the run
// mode (spec §3's run-mode enum).
func targetFormatFor(mode Mode, sourceFormat imageio.Format) imageio.Format {
	switch mode {
	case ModeConvertWebP, ModeOptimizeAndWebP:
		return imageio.FormatWebP
	default:
		if sourceFormat == imageio.FormatTIFF {
			return imageio.FormatJPEG
		}
		return sourceFormat
	}
}
