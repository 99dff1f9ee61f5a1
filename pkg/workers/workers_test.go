package workers

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapKeepsOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	for _, workers := range []int{1, 3} {
		got := Map(context.Background(), items, workers, func(_ context.Context, _ int, v int) int {
			time.Sleep(time.Duration(v) * time.Millisecond)
			return v * 10
		})
		want := []int{50, 10, 40, 20, 30}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("workers=%d: got %v, want %v", workers, got, want)
		}
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 20)
	Map(context.Background(), items, 4, func(context.Context, int, int) struct{} {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}
	})
	if peak > 4 {
		t.Fatalf("peak concurrency = %d, want <= 4", peak)
	}
}

func TestMapStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := Map(ctx, []string{"a", "b"}, 1, func(context.Context, int, string) string { return "x" })
	if got[0] != "" || got[1] != "" {
		t.Fatalf("expected zero values after cancellation, got %v", got)
	}
}
