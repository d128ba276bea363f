package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pinkbeam/platform/pkg/observability"
)

// ErrPoolClosed is returned by Submit once the pool has begun shutting down.
var ErrPoolClosed = errors.New("worker pool is shut down")

var asyncLogger = observability.NewLogger(observability.InfoLevel, nil)

// SafeGo runs fn on its own goroutine with a deadline, panic recovery and
// structured failure logging. Platform code uses it for fire-and-forget work
// such as publishing webhook events after a notification is created, where
// the HTTP response must not wait on the side effect and a panic in the side
// effect must not take the server down.
//
// Failures are logged under the given task name and never propagate.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				asyncLogger.
					WithField("task", taskName).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			asyncLogger.
				WithField("task", taskName).
				WithError(err).
				Error("background task failed")
		}
	}()
}

// WorkerPool fans submitted tasks out over a fixed number of workers. The
// webhook manager uses one to bound concurrent deliveries so a burst of
// platform events cannot open an unbounded number of outbound connections.
//
// Each task runs under its own deadline. A task that fails or panics is
// logged and does not affect the worker that ran it.
type WorkerPool struct {
	task    string
	timeout time.Duration
	tasks   chan func(context.Context) error
	drained chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewWorkerPool starts workers goroutines processing submitted tasks.
// taskName labels the pool's log entries; timeout bounds each task.
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)
	p := &WorkerPool{
		task:    taskName,
		timeout: timeout,
		tasks:   make(chan func(context.Context) error, workers*2),
		drained: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				p.work(id)
			}(i)
		}
		wg.Wait()
		close(p.drained)
	}()

	return p
}

// Submit queues a task for the pool. It blocks when all workers are busy and
// the queue is full, which applies natural backpressure to dispatchers.
// Returns ErrPoolClosed once shutdown has started.
//
// The read lock is held across the send so Shutdown cannot close the task
// channel while a send is in flight.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting tasks and waits up to timeout for the workers to
// drain what was already queued. In-flight deliveries finish; anything still
// queued when the timeout fires is abandoned.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()

		select {
		case <-p.drained:
		case <-time.After(timeout):
			err = fmt.Errorf("%s pool: shutdown timed out after %v", p.task, timeout)
		}
		p.cancel()
	})
	return err
}

func (p *WorkerPool) work(id int) {
	logger := asyncLogger.
		WithField("task", p.task).
		WithField("worker", id)

	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(logger, fn)
		}
	}
}

// run executes one task under the pool's per-task deadline. Panics are
// confined to the task so the worker survives to take the next one.
func (p *WorkerPool) run(logger *observability.Logger, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.
				WithField("panic", r).
				WithField("stack", string(debug.Stack())).
				Error("pool task panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		logger.WithError(err).Error("pool task failed")
	}
}
