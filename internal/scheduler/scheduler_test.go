package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWaitAfter(t *testing.T) {
	cases := []struct {
		interval, elapsed, want time.Duration
	}{
		{15 * time.Second, 2 * time.Second, 13 * time.Second},
		{15 * time.Second, 15 * time.Second, 0},
		{15 * time.Second, 20 * time.Second, 0},
		{time.Second, 0, time.Second},
	}
	for _, tc := range cases {
		if got := WaitAfter(tc.interval, tc.elapsed); got != tc.want {
			t.Fatalf("WaitAfter(%s, %s) = %s, 期望 %s", tc.interval, tc.elapsed, got, tc.want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			if ticks.Add(1) == 3 {
				cancel()
			}
			return errors.New("tick failures are logged, not fatal")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("期望 context.Canceled, 实际 %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("调度器未在取消后退出")
	}
	if ticks.Load() != 3 {
		t.Fatalf("期望执行 3 次, 实际 %d", ticks.Load())
	}
}

func TestRunHonoursStartupDelay(t *testing.T) {
	s := New(Options{Interval: time.Second, StartupDelay: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := s.Run(ctx, func(context.Context, time.Time) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("期望超时错误, 实际 %v", err)
	}
	if called {
		t.Fatal("启动延迟期间不应执行 tick")
	}
}

func TestRunSkipsWaitForSlowTick(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks int
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			ticks++
			// each tick "takes" longer than the interval
			clock = clock.Add(2 * time.Hour)
			if ticks == 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("慢 tick 之后不应等待")
	}
	if ticks != 2 {
		t.Fatalf("期望执行 2 次, 实际 %d", ticks)
	}
}
