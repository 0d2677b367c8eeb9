package infra

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// TaskQueue runs fire-and-forget tasks on a fixed set of workers. Task
// errors and panics are logged and swallowed; callers never see them.
// Tasks submitted under a key already queued or running are dropped.
type TaskQueue struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tasks   chan keyedTask
	logger  *zap.Logger
	wg      sync.WaitGroup // workers
	pending sync.WaitGroup // queued + running tasks

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
}

type keyedTask struct {
	key string
	fn  Task
}

// NewTaskQueue starts workers goroutines with a buffer of size queued tasks.
func NewTaskQueue(workers, size int, logger *zap.Logger) *TaskQueue {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &TaskQueue{
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(chan keyedTask, size),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues fn under key. It returns false when the key is already
// pending, the queue is full, or the queue is closed.
func (q *TaskQueue) Submit(key string, fn Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, dup := q.inflight[key]; dup {
		q.mu.Unlock()
		return false
	}
	q.inflight[key] = struct{}{}
	q.pending.Add(1)
	q.mu.Unlock()

	select {
	case q.tasks <- keyedTask{key: key, fn: fn}:
		return true
	default:
		q.done(key)
		q.logger.Warn("task queue full, dropping task", zap.String("key", key))
		return false
	}
}

// Wait blocks until every submitted task has finished.
func (q *TaskQueue) Wait() {
	q.pending.Wait()
}

// Close stops accepting tasks, waits for queued work, and stops workers.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.pending.Wait()
	q.cancel()
	close(q.tasks)
	q.wg.Wait()
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(t)
	}
}

func (q *TaskQueue) run(t keyedTask) {
	defer q.done(t.key)
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("background task panicked", zap.String("key", t.key), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := t.fn(q.ctx); err != nil {
		q.logger.Debug("background task failed", zap.String("key", t.key), zap.Error(err))
	}
}

func (q *TaskQueue) done(key string) {
	q.mu.Lock()
	delete(q.inflight, key)
	q.mu.Unlock()
	q.pending.Done()
}
