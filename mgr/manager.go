package mgr

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Manager manages workers and tasks of a single component and gives it a
// named, structured logger.
type Manager struct {
	name string

	ctx       context.Context
	cancelCtx context.CancelFunc

	workerCnt atomic.Int32
	workersWG sync.WaitGroup

	logger *slog.Logger
}

// WorkerCtx is handed to every worker function and task function. It lets
// the worker observe cancellation and log with the owning manager's name
// attached.
type WorkerCtx struct {
	*Manager

	workerName string
}

// New returns a new manager with the given name.
func New(name string) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		name:      name,
		ctx:       ctx,
		cancelCtx: cancel,
		logger:    slog.Default().With("module", name),
	}
}

// Name returns the manager's name.
func (m *Manager) Name() string {
	return m.name
}

// Ctx returns the manager's context. It is canceled when the manager is
// stopped.
func (m *Manager) Ctx() context.Context {
	return m.ctx
}

// Done returns the manager context's Done channel.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// IsDone returns whether the manager has been canceled.
func (m *Manager) IsDone() bool {
	return m.ctx.Err() != nil
}

// Cancel cancels the manager context, signaling all workers and tasks to
// stop on their next check.
func (m *Manager) Cancel() {
	m.cancelCtx()
}

// WaitForWorkers waits for all started workers to finish, up to the given
// timeout. A timeout of zero waits forever.
func (m *Manager) WaitForWorkers(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return true
	}

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Go starts fn in a new goroutine, tracked as a worker under the given name.
func (m *Manager) Go(workerName string, fn func(w *WorkerCtx) error) {
	m.workerCnt.Add(1)
	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		defer m.workerCnt.Add(-1)
		m.runWorker(workerName, fn)
	}()
}

// StartWorker is an alias of Go, used when starting a worker pool member
// rather than a single named background task.
func (m *Manager) StartWorker(workerName string, fn func(w *WorkerCtx) error) {
	m.Go(workerName, fn)
}

// Do runs fn synchronously, recovering from panics and logging any returned
// error. The error is returned to the caller as well, but most callers that
// already log elsewhere discard it.
func (m *Manager) Do(taskName string, fn func(w *WorkerCtx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			m.Error(
				"task panicked",
				"task", taskName,
				"err", err,
				"stack", string(debug.Stack()),
			)
		}
	}()

	w := &WorkerCtx{Manager: m, workerName: taskName}
	err = fn(w)
	if err != nil {
		m.Error("task failed", "task", taskName, "err", err)
	}
	return err
}

func (m *Manager) runWorker(workerName string, fn func(w *WorkerCtx) error) {
	defer func() {
		if r := recover(); r != nil {
			m.Error(
				"worker panicked",
				"worker", workerName,
				"err", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	w := &WorkerCtx{Manager: m, workerName: workerName}
	if err := fn(w); err != nil && !m.IsDone() {
		m.Error("worker failed", "worker", workerName, "err", err)
	}
}

// Debug logs a debug message with the manager's module name attached.
func (m *Manager) Debug(msg string, args ...any) {
	m.logger.Debug(msg, args...)
}

// Info logs an info message with the manager's module name attached.
func (m *Manager) Info(msg string, args ...any) {
	m.logger.Info(msg, args...)
}

// Warn logs a warning message with the manager's module name attached.
func (m *Manager) Warn(msg string, args ...any) {
	m.logger.Warn(msg, args...)
}

// Error logs an error message with the manager's module name attached.
func (m *Manager) Error(msg string, args ...any) {
	m.logger.Error(msg, args...)
}

// WorkerName returns the name this worker was started with.
func (w *WorkerCtx) WorkerName() string {
	return w.workerName
}
