// Package pool implements the Worker Pool: an N-way, FIFO-scheduled task
// executor over a bounded queue (spec §4.10). Grounded directly on the
// teacher's core.Processor worker-pool internals — a buffered job channel,
// long-lived workers started via sync.Once, sync.WaitGroup shutdown, and
// atomic counters — generalized from the teacher's fixed ImageData/Job
// payload into a pool over an arbitrary Task closure so it can run FileJobs.
package pool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/imageopt/engine/internal/apperrors"
)

// Task is one unit of work submitted to the pool. It should observe ctx for
// cancellation at its own stage boundaries (spec §4.9's cooperative cancel).
type Task func(ctx context.Context)

// Pool is a long-lived, fixed-size worker pool with strictly FIFO scheduling
// to free workers (spec §4.10: "no ordering guarantee between tasks").
type Pool struct {
	queue    chan Task
	wg       sync.WaitGroup
	once     sync.Once
	shutdown chan struct{}

	completed int64
	crashed   int64
}

// WorkerCount implements spec §4.10's default: max(1, min(4, cores-1)),
// honouring an explicit positive override from settings.
func WorkerCount(explicit int) int {
	if explicit > 0 {
		return explicit
	}
	n := runtime.NumCPU() - 1
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// New creates a Pool with the given queue capacity. workerCount is not
// stored; the number of workers is set by Start's argument. Call Start
// before Submit, Stop (or StopWait) when done.
func New(workerCount, queueSize int) *Pool {
	if workerCount <= 0 {
		workerCount = WorkerCount(0)
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{
		queue:    make(chan Task, queueSize),
		shutdown: make(chan struct{}),
	}
}

// Start launches the worker goroutines. Idempotent.
func (p *Pool) Start(ctx context.Context, workerCount int) {
	if workerCount <= 0 {
		workerCount = WorkerCount(0)
	}
	p.once.Do(func() {
		for i := 0; i < workerCount; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

// Submit enqueues task, returning ErrPoolFull if the queue is at capacity
// (spec §4.10's bounded task queue).
func (p *Pool) Submit(task Task) error {
	select {
	case p.queue <- task:
		return nil
	default:
		return apperrors.Wrap(apperrors.CategoryUnknown, "pool.Submit", apperrors.ErrPoolFull)
	}
}

// Stop signals workers to exit once their current task finishes; tasks still
// waiting in the queue are not guaranteed to run. Stop does not wait.
func (p *Pool) Stop() {
	close(p.shutdown)
}

// StopWait signals shutdown and blocks until all workers have exited; like
// Stop, it does not drain tasks still waiting in the queue.
func (p *Pool) StopWait() {
	p.Stop()
	p.wg.Wait()
}

// Completed returns the count of tasks that ran to completion without panic.
func (p *Pool) Completed() int64 { return atomic.LoadInt64(&p.completed) }

// Crashed returns the count of tasks whose worker recovered from a panic
// (spec §4.10: "a worker crash promotes to an error for the in-flight task
// and the worker is replaced").
func (p *Pool) Crashed() int64 { return atomic.LoadInt64(&p.crashed) }

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.shutdown:
			return
		case <-ctx.Done():
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.runTask(ctx, task)
		}
	}
}

// runTask executes task, recovering a panic as a crash so one misbehaving
// task cannot take down its worker goroutine permanently (spec §4.10).
func (p *Pool) runTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.crashed, 1)
			return
		}
		atomic.AddInt64(&p.completed, 1)
	}()
	task(ctx)
}
