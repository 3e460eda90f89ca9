// Package scheduler implements the single shared cooperative run-loop
// spec.md §5 requires: one goroutine per monitor task (the "one
// goroutine per service sharing a coordination channel" mapping spec.md
// §9's design notes explicitly sanction), with a bounded worker pool
// gating the blocking OS calls (process spawn, blocking wait, file
// open) those tasks make, so that offloaded work never runs unbounded
// in parallel. Grounded on pool/containerpool.go's Acquire/Release/
// Shutdown shape, adapted from a pool of reusable objects to a bounded
// admission-control semaphore around arbitrary offloaded work.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Scheduler tracks every live monitor task (so Shutdown can cancel and
// await all of them) and gates blocking offload work behind a bounded
// semaphore.
type Scheduler struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancels []context.CancelFunc
	closed  bool
}

// New returns a Scheduler whose Offload admits at most maxOffload
// concurrent blocking calls at a time.
func New(maxOffload int64) *Scheduler {
	if maxOffload <= 0 {
		maxOffload = 8
	}
	return &Scheduler{sem: semaphore.NewWeighted(maxOffload)}
}

// Submit launches fn as a tracked, cancellable task. fn must observe
// ctx.Done() at its suspension points (blocker spawn, inter-check sleep,
// child-spawn offload, inter-poll sleep — spec.md §5) so that Shutdown's
// cancellation actually unblocks it.
func (s *Scheduler) Submit(fn func(ctx context.Context)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is shut down")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels = append(s.cancels, cancel)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
	return nil
}

// Offload runs fn after acquiring a slot in the bounded worker pool,
// releasing it on return. This is where synchronous OS work (spawn,
// wait, open) is kept off of any single shared thread's critical path,
// per spec.md §5.
func (s *Scheduler) Offload(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return fn(ctx)
}

// Shutdown cancels every outstanding task and waits for them to return,
// or for ctx to expire first.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, c := range cancels {
		c()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
