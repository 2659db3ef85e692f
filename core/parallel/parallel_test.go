package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"empty", 0, 4},
		{"fewer items than workers", 3, 8},
		{"uneven chunks", 101, 4},
		{"default workers", 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.items)
			ParallelizeN(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, c := range seen {
				if c != 1 {
					t.Fatalf("item %d visited %d times", i, c)
				}
			}
		})
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("got range [%d,%d), want [0,10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestForEach(t *testing.T) {
	var sum int64
	err := ForEach(50, 4, func(i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach() error = %v", err)
	}
	if sum != 49*50/2 {
		t.Errorf("sum = %d, want %d", sum, 49*50/2)
	}
}

func TestForEachReturnsLowestIndexError(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	err := ForEach(10, 3, func(i int) error {
		switch i {
		case 7:
			return errB
		case 3:
			return errA
		}
		return nil
	})
	if err != errA {
		t.Errorf("ForEach() error = %v, want %v", err, errA)
	}
}

func TestWorkers(t *testing.T) {
	if got := Workers(4, 2); got != 2 {
		t.Errorf("Workers(4, 2) = %d, want 2", got)
	}
	if got := Workers(3, 10); got != 3 {
		t.Errorf("Workers(3, 10) = %d, want 3", got)
	}
	if got := Workers(0, 0); got != 1 {
		t.Errorf("Workers(0, 0) = %d, want 1", got)
	}
}
