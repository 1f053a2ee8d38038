package background

import (
	"context"
	"sync"
	"time"
)

// Scope - abstract concurrency scope: goroutines started within scope share
// cancellable context and may be awaited together.
type Scope struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	mu        sync.Mutex
	scope     sync.WaitGroup
}

// NewScope - concurrency scope builder.
// Returned cancel func cancels scope context and waits for all scope goroutines.
func NewScope(parent context.Context) (scope *Scope, cancel func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancelFunc := context.WithCancel(parent)
	s := &Scope{
		ctx:       ctx,
		ctxCancel: cancelFunc,
	}
	return s,
		func() {
			s.Cancel()
			s.scope.Wait()
		}
}

// Context - return background context
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Go - starts f in new goroutine within the scope.
// Returns false and does nothing when scope is cancelled already.
func (s *Scope) Go(f func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.scope.Add(1)
	go func() {
		defer s.scope.Done()
		f(s.ctx)
	}()
	return true
}

// Cancel - cancels scope context without waiting.
func (s *Scope) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxCancel()
}

// Wait - waits for scope goroutines not longer than timeout.
// Returns true if all goroutines have finished.
func (s *Scope) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.scope.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
