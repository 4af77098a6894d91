package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/couchuser/pkg/observability"
)

// syncBuffer guards a buffer shared with pool workers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestPool(t *testing.T, opts PoolOptions) (*WorkerPool, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	opts.Logger = observability.NewLogger(observability.DebugLevel, buf)
	pool := NewWorkerPool(context.Background(), "test pool", opts)
	t.Cleanup(func() { pool.Shutdown(time.Second) })
	return pool, buf
}

func TestWorkerPool_Basic(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{Workers: 2, QueueSize: 10, Timeout: time.Second})

	var wg sync.WaitGroup
	executed := atomic.Int32{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := pool.Submit(func(ctx context.Context) error {
			defer wg.Done()
			executed.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Failed to submit task: %v", err)
		}
	}
	wg.Wait()

	if executed.Load() != 10 {
		t.Errorf("Expected 10 executions, got %d", executed.Load())
	}
}

func TestWorkerPool_QueueFull(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{Workers: 1, QueueSize: 1, Timeout: time.Second})

	release := make(chan struct{})
	started := make(chan struct{})
	if err := pool.Submit(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Failed to submit task: %v", err)
	}
	<-started

	// fills the queue
	if err := pool.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Failed to submit task: %v", err)
	}

	err := pool.Submit(func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrPoolFull) {
		t.Errorf("Submit() error = %v, want ErrPoolFull", err)
	}
	close(release)
}

func TestWorkerPool_ShutdownDrains(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{Workers: 2, QueueSize: 5, Timeout: time.Second})

	executed := atomic.Int32{}
	for i := 0; i < 5; i++ {
		err := pool.Submit(func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			executed.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Failed to submit task: %v", err)
		}
	}

	if err := pool.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if executed.Load() != 5 {
		t.Errorf("Expected 5 executions, got %d", executed.Load())
	}

	err := pool.Submit(func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after shutdown error = %v, want ErrPoolClosed", err)
	}

	// second shutdown is a no-op
	if err := pool.Shutdown(time.Second); err != nil {
		t.Errorf("second Shutdown failed: %v", err)
	}
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{Workers: 1, Timeout: time.Minute})

	canceled := make(chan struct{})
	started := make(chan struct{})
	pool.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	})
	<-started

	if err := pool.Shutdown(20 * time.Millisecond); err == nil {
		t.Error("Expected shutdown timeout error")
	}

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Error("running task was not canceled")
	}
}

func TestWorkerPool_TaskTimeout(t *testing.T) {
	pool, _ := newTestPool(t, PoolOptions{Workers: 1, Timeout: 20 * time.Millisecond})

	done := make(chan error, 1)
	pool.Submit(func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			done <- nil
		case <-ctx.Done():
			done <- ctx.Err()
		}
		return nil
	})

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("task error = %v, want deadline exceeded", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
}

func TestWorkerPool_ErrorsAndPanicsAreLogged(t *testing.T) {
	pool, buf := newTestPool(t, PoolOptions{Workers: 1, QueueSize: 3, Timeout: time.Second})

	pool.Submit(func(ctx context.Context) error { return errors.New("disk full") })
	pool.Submit(func(ctx context.Context) error { panic("boom") })

	executed := make(chan struct{})
	pool.Submit(func(ctx context.Context) error {
		close(executed)
		return nil
	})

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}

	if err := pool.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"task failed", "disk full", "task panicked", "boom", "test pool"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}
