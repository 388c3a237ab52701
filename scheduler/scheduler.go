// Package scheduler implements the sequential priority lane for gateway
// requests that must not run concurrently with each other.
//
// Submitted tasks are held in a priority queue and executed one at a time by
// a single consumer goroutine. Higher priorities run first and equal
// priorities keep their submission order.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned for tasks submitted to, or still pending in, a closed scheduler.
var ErrClosed = errors.New("scheduler: closed")

// Task is a unit of queued work. It receives the context it was submitted with.
type Task func(ctx context.Context) error

// Scheduler runs tasks one at a time in priority order.
type Scheduler struct {
	mu      sync.Mutex
	pending queue
	seq     uint64
	closed  bool

	wake      chan struct{}
	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New creates a scheduler and starts its consumer goroutine. Call Close to
// stop it.
func New() *Scheduler {
	s := &Scheduler{
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit enqueues task with the given priority and blocks until it settles,
// returning the task's error. If ctx ends while the task is still pending the
// task is dropped and ctx.Err() is returned; a task that already started is
// waited for.
func (s *Scheduler) Submit(ctx context.Context, priority int, task Task) error {
	e := &entry{ctx: ctx, task: task, priority: priority, done: make(chan error, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.seq++
	e.seq = s.seq
	heap.Push(&s.pending, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-e.done:
		return err
	case <-ctx.Done():
		if s.remove(e) {
			return ctx.Err()
		}
		return <-e.done
	}
}

// Pending returns the number of tasks waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Close stops intake, settles pending tasks with ErrClosed and waits for the
// running task to finish. It is safe to call more than once.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for s.pending.Len() > 0 {
			e := heap.Pop(&s.pending).(*entry)
			e.done <- ErrClosed
		}
		s.mu.Unlock()
		close(s.stop)
	})
	<-s.stopped
	return nil
}

func (s *Scheduler) run() {
	defer close(s.stopped)
	for {
		e := s.next()
		if e == nil {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		if err := e.ctx.Err(); err != nil {
			e.done <- err
			continue
		}
		e.done <- execute(e)
	}
}

func (s *Scheduler) next() *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Len() == 0 {
		return nil
	}
	return heap.Pop(&s.pending).(*entry)
}

// remove drops e if it has not been picked up yet.
func (s *Scheduler) remove(e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.index < 0 {
		return false
	}
	heap.Remove(&s.pending, e.index)
	return true
}

func execute(e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: task panicked: %v", r)
		}
	}()
	return e.task(e.ctx)
}
