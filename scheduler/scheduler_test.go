package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// block occupies the consumer until release is closed.
func block(t *testing.T, s *Scheduler) (release func(), done <-chan error) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- s.Submit(context.Background(), 0, func(context.Context) error {
			close(started)
			<-gate
			return nil
		})
	}()
	<-started
	return func() { close(gate) }, result
}

// submitInOrder submits tasks one after another, waiting for each to be
// queued so their insertion order is deterministic.
func submitInOrder(t *testing.T, s *Scheduler, priorities []int, task func(i int) Task) *sync.WaitGroup {
	t.Helper()
	var wg sync.WaitGroup
	for i, p := range priorities {
		wg.Add(1)
		before := s.Pending()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Submit(context.Background(), p, task(i)))
		}()
		require.Eventually(t, func() bool { return s.Pending() == before+1 }, time.Second, time.Millisecond)
	}
	return &wg
}

func TestPriorityThenFIFO(t *testing.T) {
	s := New()
	defer s.Close()

	release, blocked := block(t, s)

	var (
		mu    sync.Mutex
		order []string
	)
	names := []string{"P1", "P2", "P3"}
	wg := submitInOrder(t, s, []int{1, 5, 1}, func(i int) Task {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, names[i])
			mu.Unlock()
			return nil
		}
	})

	release()
	require.NoError(t, <-blocked)
	wg.Wait()

	assert.Equal(t, []string{"P2", "P1", "P3"}, order)
}

func TestTasksNeverOverlap(t *testing.T) {
	s := New()
	defer s.Close()

	var (
		running atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Submit(context.Background(), i%3, func(context.Context) error {
				n := running.Add(1)
				for {
					current := maxSeen.Load()
					if n <= current || maxSeen.CompareAndSwap(current, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestSubmitReturnsTaskError(t *testing.T) {
	s := New()
	defer s.Close()

	want := errors.New("filter wheel busy")
	err := s.Submit(context.Background(), 0, func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestSubmitCancelledWhilePending(t *testing.T) {
	s := New()
	defer s.Close()

	release, blocked := block(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- s.Submit(ctx, 10, func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()
	require.Eventually(t, func() bool { return s.Pending() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-result, context.Canceled)
	assert.Equal(t, 0, s.Pending())

	release()
	require.NoError(t, <-blocked)
	assert.False(t, ran.Load())
}

func TestTaskSeesSubmitContext(t *testing.T) {
	s := New()
	defer s.Close()

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "camera")
	err := s.Submit(ctx, 0, func(ctx context.Context) error {
		if ctx.Value(key{}) != "camera" {
			return errors.New("context not propagated")
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestPanicIsRecovered(t *testing.T) {
	s := New()
	defer s.Close()

	err := s.Submit(context.Background(), 0, func(context.Context) error { panic("focuser jammed") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "focuser jammed")

	assert.NoError(t, s.Submit(context.Background(), 0, func(context.Context) error { return nil }))
}

func TestClose(t *testing.T) {
	s := New()

	release, blocked := block(t, s)

	result := make(chan error, 1)
	go func() {
		result <- s.Submit(context.Background(), 1, func(context.Context) error { return nil })
	}()
	require.Eventually(t, func() bool { return s.Pending() == 1 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		assert.NoError(t, s.Close())
		close(closed)
	}()

	assert.ErrorIs(t, <-result, ErrClosed)

	select {
	case <-closed:
		t.Fatal("Close returned while a task was running")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	require.NoError(t, <-blocked)
	<-closed

	assert.ErrorIs(t, s.Submit(context.Background(), 0, func(context.Context) error { return nil }), ErrClosed)
	assert.NoError(t, s.Close())
}
