package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func jobsFor(names ...string) []*Job {
	jobs := make([]*Job, len(names))
	for i, name := range names {
		jobs[i] = NewProcessJob(name, "")
	}
	return jobs
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() })

		if bp.concurrency != defaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", defaultConcurrency, bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(5))
		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(0))
		if bp.concurrency != defaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", defaultConcurrency, bp.concurrency)
		}
	})

	t.Run("applies WithBatchLogger option", func(t *testing.T) {
		t.Parallel()

		logger := slog.Default()
		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithBatchLogger(logger))
		if bp.logger != logger {
			t.Error("expected custom logger")
		}
	})
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all jobs", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "counter",
				doFunc: func(_ context.Context, _ *Job) error {
					processed.Add(1)
					return nil
				},
			})
			return p
		})

		jobs, err := bp.ProcessBatch(context.Background(), jobsFor("a", "b", "c"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(jobs) != 3 {
			t.Errorf("expected 3 jobs, got %d", len(jobs))
		}
		if processed.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processed.Load())
		}
		for i, want := range []string{"a", "b", "c"} {
			if jobs[i].Name != want {
				t.Errorf("job[%d] = %q, want %q", i, jobs[i].Name, want)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var maxConcurrent, current atomic.Int32
		var mu sync.Mutex

		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "concurrent-counter",
				doFunc: func(_ context.Context, _ *Job) error {
					n := current.Add(1)
					mu.Lock()
					if n > maxConcurrent.Load() {
						maxConcurrent.Store(n)
					}
					mu.Unlock()

					time.Sleep(20 * time.Millisecond)
					current.Add(-1)
					return nil
				},
			})
			return p
		}, WithConcurrency(2))

		if _, err := bp.ProcessBatch(context.Background(), jobsFor("1", "2", "3", "4", "5", "6", "7", "8")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if maxConcurrent.Load() > 2 {
			t.Errorf("max concurrent was %d, expected <= 2", maxConcurrent.Load())
		}
	})

	t.Run("first failure is returned and cancels the rest", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("bad subject")
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "fails-on-bad",
				doFunc: func(ctx context.Context, job *Job) error {
					if job.Name == "bad" {
						return expectedErr
					}
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(time.Second):
						return nil
					}
				},
			})
			return p
		}, WithConcurrency(4))

		start := time.Now()
		jobs, err := bp.ProcessBatch(context.Background(), jobsFor("ok-1", "bad", "ok-2"))
		if !errors.Is(err, expectedErr) {
			t.Fatalf("expected %v, got %v", expectedErr, err)
		}
		if !errors.Is(jobs[1].Error, expectedErr) {
			t.Errorf("failed job error = %v", jobs[1].Error)
		}
		if time.Since(start) >= time.Second {
			t.Error("remaining jobs were not cancelled")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var processed atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "counter",
				doFunc: func(_ context.Context, _ *Job) error {
					processed.Add(1)
					return nil
				},
			})
			return p
		})

		if _, err := bp.ProcessBatch(ctx, jobsFor("a", "b")); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if processed.Load() != 0 {
			t.Errorf("expected no job to run, %d ran", processed.Load())
		}
	})
}

func TestBatchProcessorCallback(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(func() *Pipeline {
		p := New()
		p.AddStep(&mockStep{name: "noop"})
		return p
	})

	var mu sync.Mutex
	seen := map[int]string{}
	err := bp.ProcessBatchWithCallback(context.Background(), jobsFor("x", "y"), func(job *Job, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = job.Name
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen[0] != "x" || seen[1] != "y" {
		t.Errorf("callback saw %v", seen)
	}
}
