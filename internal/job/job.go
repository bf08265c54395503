// Package job implements the File Job state machine (spec §4.9): the status
// and progress-stage transitions a single file undergoes as it moves through
// the pipeline, plus the event it emits on each change. Grounded on the
// teacher's core.Job/core.JobResult shape, generalized from a fire-and-forget
// result channel into an explicit, invariant-checked state machine.
package job

import (
	"fmt"
	"sync"
)

// Status is a FileJob's top-level state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// terminal reports whether s is a state no further transition can leave.
func (s Status) terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	}
	return false
}

// Stage is a progress checkpoint reached while Status == StatusRunning.
type Stage string

const (
	StageAnalyzing    Stage = "analyzing"
	StageDecoding     Stage = "decoding"
	StageTransforming Stage = "transforming"
	StageEncoding     Stage = "encoding"
	StageWriting      Stage = "writing"
	StageVerifying    Stage = "verifying"
	StageCleaning     Stage = "cleaning"
)

// Result carries the outcome payload attached to a terminal transition.
type Result struct {
	OutputPath     string
	BytesOriginal  int64
	BytesOutput    int64
	SkipReason     string
	Err            error
}

// Event is emitted on every status or stage transition (spec §4.9:
// "{jobId, status, progress?, result?}").
type Event struct {
	JobID  string
	Status Status
	Stage  Stage // zero value when Status != running
	Result *Result
}

// FileJob tracks one input file's progress through the pipeline.
type FileJob struct {
	ID    string
	Input string

	mu     sync.Mutex
	status Status
	stage  Stage
	result *Result

	listeners []func(Event)
}

// New creates a FileJob in the queued state.
func New(id, input string) *FileJob {
	return &FileJob{ID: id, Input: input, status: StatusQueued}
}

// OnEvent registers a listener invoked synchronously on every transition.
// Not safe to call concurrently with transitions; register before the job
// is submitted to a pool.
func (j *FileJob) OnEvent(fn func(Event)) {
	j.listeners = append(j.listeners, fn)
}

// Status returns the job's current top-level state.
func (j *FileJob) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Stage returns the job's current progress stage (meaningful only while running).
func (j *FileJob) Stage() Stage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stage
}

// Start transitions queued -> running. Invalid from any other state.
func (j *FileJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusQueued {
		return fmt.Errorf("job %s: cannot start from status %q", j.ID, j.status)
	}
	j.status = StatusRunning
	j.emitLocked(Event{JobID: j.ID, Status: j.status})
	return nil
}

// Advance moves to the given progress stage. Only valid while running.
func (j *FileJob) Advance(stage Stage) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return fmt.Errorf("job %s: cannot advance stage from status %q", j.ID, j.status)
	}
	j.stage = stage
	j.emitLocked(Event{JobID: j.ID, Status: j.status, Stage: j.stage})
	return nil
}

// finish transitions to a terminal status with a result payload. Skipped is
// reachable from queued (pre-processed dedup) or running (no-candidate);
// all others are reachable only from running (spec §4.9).
func (j *FileJob) finish(status Status, result Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.terminal() {
		return fmt.Errorf("job %s: cannot transition out of terminal status %q", j.ID, j.status)
	}
	if status != StatusSkipped && j.status != StatusRunning {
		return fmt.Errorf("job %s: %q reachable only from running, current status %q", j.ID, status, j.status)
	}
	j.status = status
	j.stage = ""
	j.result = &result
	j.emitLocked(Event{JobID: j.ID, Status: j.status, Result: j.result})
	return nil
}

// Succeed finishes the job with output path and size bookkeeping.
func (j *FileJob) Succeed(outputPath string, bytesOriginal, bytesOutput int64) error {
	return j.finish(StatusSuccess, Result{OutputPath: outputPath, BytesOriginal: bytesOriginal, BytesOutput: bytesOutput})
}

// Fail finishes the job with an error.
func (j *FileJob) Fail(err error) error {
	return j.finish(StatusFailed, Result{Err: err})
}

// Skip finishes the job with a human-readable reason, from queued or running.
func (j *FileJob) Skip(reason string) error {
	return j.finish(StatusSkipped, Result{SkipReason: reason})
}

// Cancel finishes the job as cancelled; only valid while running. A job
// that is still queued cannot be moved to cancelled by Cancel.
func (j *FileJob) Cancel() error {
	return j.finish(StatusCancelled, Result{})
}

// Result returns the terminal result, or nil if the job hasn't finished.
func (j *FileJob) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *FileJob) emitLocked(ev Event) {
	for _, fn := range j.listeners {
		fn(ev)
	}
}
