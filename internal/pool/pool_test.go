package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_RunsAllTasks(t *testing.T) {
	p := New(4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx, 4)

	var count int64
	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(func(context.Context) { atomic.AddInt64(&count, 1) }))
	}

	require.Eventually(t, func() bool { return atomic.LoadInt64(&count) == n }, time.Second, time.Millisecond)
	p.StopWait()
	require.Equal(t, int64(n), p.Completed())
}

func TestPool_RecoversFromPanickingTask(t *testing.T) {
	p := New(2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx, 2)

	require.NoError(t, p.Submit(func(context.Context) { panic("boom") }))

	var ran int64
	require.NoError(t, p.Submit(func(context.Context) { atomic.AddInt64(&ran, 1) }))

	require.Eventually(t, func() bool { return atomic.LoadInt64(&ran) == 1 }, time.Second, time.Millisecond)
	p.StopWait()
	require.Equal(t, int64(1), p.Crashed())
}

func TestPool_SubmitFailsWhenQueueFull(t *testing.T) {
	p := New(1, 1)
	// No Start: queue fills without any worker draining it.
	require.NoError(t, p.Submit(func(context.Context) {}))
	err := p.Submit(func(context.Context) {})
	require.Error(t, err)
}

func TestWorkerCount_DefaultFormula(t *testing.T) {
	require.Equal(t, 3, WorkerCount(3))
	n := WorkerCount(0)
	require.GreaterOrEqual(t, n, 1)
	require.LessOrEqual(t, n, 4)
}
