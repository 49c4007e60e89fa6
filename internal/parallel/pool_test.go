package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", n, got, want)
		}
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(work)

	if got := counter.Load(); got != 100 {
		t.Errorf("counter = %d, want 100", got)
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	pool.ExecuteAll(nil)
	pool.ExecuteAll([]func(){})
}

func TestWorkerPool_ExecuteAllAfterCloseRunsInline(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	ran := 0
	pool.ExecuteAll([]func(){func() { ran++ }, func() { ran++ }})
	if ran != 2 {
		t.Errorf("ran = %d after Close, want 2", ran)
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("pool should not be running after Close")
	}
}

func TestWorkerPool_ForRangeCoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		n       int
		grain   int
	}{
		{"auto grain", 4, 97, 0},
		{"grain 1", 4, 10, 1},
		{"grain larger than n", 4, 5, 100},
		{"single worker", 1, 33, 0},
		{"uneven bands", 3, 100, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.workers)
			defer pool.Close()

			hits := make([]int32, tt.n)
			pool.ForRange(tt.n, tt.grain, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("index %d visited %d times, want 1", i, h)
				}
			}
		})
	}
}

func TestWorkerPool_ForRangeZero(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	pool.ForRange(0, 0, func(int, int) { called = true })
	if called {
		t.Error("ForRange(0) should not call fn")
	}
}

func TestWorkerPool_Concurrent(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.ForRange(50, 5, func(lo, hi int) {
				counter.Add(int64(hi - lo))
			})
		}()
	}
	wg.Wait()

	if got := counter.Load(); got != 8*50 {
		t.Errorf("counter = %d, want %d", got, 8*50)
	}
}

func BenchmarkWorkerPool_ForRange(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	data := make([]float32, 1<<16)
	b.ResetTimer()
	for range b.N {
		pool.ForRange(len(data), 0, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				data[i] = data[i]*0.5 + 1
			}
		})
	}
}
