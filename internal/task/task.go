// Package task runs named goroutines with panic protection and a joinable lifecycle.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-overseer/logger"
)

// ErrStopped is returned by Start after Stop was called.
var ErrStopped = errors.New("task manager already stopped")

// Func is the body of a managed goroutine. It receives the manager context,
// which is cancelled by Stop.
type Func func(ctx context.Context)

// PanicHandler is invoked with the recovered value when a task body panics.
type PanicHandler func(name string, recovered any)

// Manager manages the lifecycle of goroutines.
//
// Example Usage:
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("commandLoop", func(ctx context.Context) {
//	    // ... loop until ctx is done or the work is finished ...
//	})
//	mgr.Stop()
//	_ = mgr.Wait(waitCtx)
type Manager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	onPanic PanicHandler
	mu      sync.Mutex // serializes Start against Stop
	stopped bool
}

// NewManager creates a new Manager with ctx as the parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}
	mgr := &Manager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// OnPanic sets the handler invoked after a task panics. It must be set before Start.
func (mgr *Manager) OnPanic(h PanicHandler) {
	mgr.onPanic = h
}

// Start starts a new goroutine running fn.
func (mgr *Manager) Start(name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("task %s: nil function", name)
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.stopped {
		return fmt.Errorf("start %s: %w", name, ErrStopped)
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)
	mgr.logger.Debug("start task", "name", name)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.Count())
		}()
		defer mgr.recoverPanic(name)

		fn(mgr.ctx)
	}()

	return nil
}

// Stop cancels the context passed to every task. Tasks still have to return on their own.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	mgr.stopped = true
	mgr.cancel()
}

// Wait blocks until every task returned or ctx is done.
func (mgr *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		mgr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) recoverPanic(name string) {
	r := recover()
	if r == nil {
		return
	}

	mgr.logger.Error("panic in task", "name", name, "panic", r)
	if mgr.onPanic != nil {
		mgr.onPanic(name, r)
	}
}
