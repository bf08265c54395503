package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imageopt/engine/internal/apperrors"
	"github.com/imageopt/engine/internal/job"
)

// submitWithRecover mirrors StartRun's per-path task closure: a panic inside
// the wrapped function must fail j rather than leave it stuck in "running"
// (see DESIGN.md's "Worker panic now fails the job" entry).
func submitWithRecover(j *job.FileJob, fn func(ctx context.Context)) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			_ = j.Fail(apperrors.New(apperrors.CategoryUnknown, "coordinator.runFileJob", fmt.Errorf("worker panic: %v", r)))
			panicked = true
		}
	}()
	fn(context.Background())
	return false
}

func TestSubmitWithRecover_PanicFailsJob(t *testing.T) {
	j := job.New("run:a.jpg", "a.jpg")
	require.NoError(t, j.Start())

	panicked := submitWithRecover(j, func(ctx context.Context) {
		panic("candidate.Build blew up")
	})

	require.True(t, panicked)
	require.Equal(t, job.StatusFailed, j.Status())
}

func TestSubmitWithRecover_NoPanicLeavesJobAlone(t *testing.T) {
	j := job.New("run:b.jpg", "b.jpg")
	require.NoError(t, j.Start())

	panicked := submitWithRecover(j, func(ctx context.Context) {
		_ = j.Succeed("out.jpg", 100, 50)
	})

	require.False(t, panicked)
	require.Equal(t, job.StatusSuccess, j.Status())
}
