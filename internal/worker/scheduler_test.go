package worker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"finbot/internal/log"
)

type countingRunner struct {
	sweeps    atomic.Int64
	reminders atomic.Int64
}

func (c *countingRunner) Sweep(context.Context) (int, int, error) {
	c.sweeps.Add(1)
	return 0, 0, nil
}

func (c *countingRunner) SendDailyReminders(context.Context) (int, error) {
	c.reminders.Add(1)
	return 0, nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestKyivMinute(t *testing.T) {
	// 06:30 UTC is 09:30 in Kyiv during summer time.
	summer := time.Date(2024, time.June, 15, 6, 30, 0, 0, time.UTC)
	if got := kyivMinute(summer); got != "09:30" {
		t.Errorf("kyivMinute(summer) = %q, want 09:30", got)
	}
	// 07:00 UTC is 09:00 in Kyiv during winter time.
	winter := time.Date(2024, time.January, 15, 7, 0, 0, 0, time.UTC)
	if got := kyivMinute(winter); got != "09:00" {
		t.Errorf("kyivMinute(winter) = %q, want 09:00", got)
	}
}

func TestFireMatchesMarks(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, testLogger(), "09:00", []string{"12:00", "20:00"})
	ctx := context.Background()

	s.fire(ctx, "08:59")
	if runner.sweeps.Load() != 0 || runner.reminders.Load() != 0 {
		t.Error("fired outside any mark")
	}

	s.fire(ctx, "09:00")
	if runner.sweeps.Load() != 1 {
		t.Errorf("sweeps = %d, want 1", runner.sweeps.Load())
	}

	s.fire(ctx, "12:00")
	s.fire(ctx, "20:00")
	if runner.reminders.Load() != 2 {
		t.Errorf("reminders = %d, want 2", runner.reminders.Load())
	}
	if runner.sweeps.Load() != 1 {
		t.Errorf("sweeps after reminder marks = %d, want 1", runner.sweeps.Load())
	}
}

func TestRunFiresOncePerMinute(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, testLogger(), "09:00", nil)
	s.tick = time.Millisecond

	// Frozen clock: first tick moves into the sweep minute, later ticks stay
	// inside it and must not re-fire.
	base := time.Date(2024, time.June, 15, 5, 59, 0, 0, time.UTC) // 08:59 Kyiv
	var advanced atomic.Bool
	s.now = func() time.Time {
		if advanced.Load() {
			return base.Add(time.Minute) // 09:00 Kyiv
		}
		return base
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	// Let Run seed its starting minute before the clock moves.
	time.Sleep(10 * time.Millisecond)
	advanced.Store(true)
	deadline := time.After(time.Second)
	for runner.sweeps.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("sweep never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// Let a few more ticks pass inside the same minute.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if got := runner.sweeps.Load(); got != 1 {
		t.Errorf("sweeps = %d, want exactly 1 per minute", got)
	}
}

func TestSchedulerDefaultsSweepTime(t *testing.T) {
	s := NewScheduler(&countingRunner{}, testLogger(), "", nil)
	if s.sweepAt != "09:00" {
		t.Errorf("default sweepAt = %q, want 09:00", s.sweepAt)
	}
	if _, err := time.Parse("15:04", s.sweepAt); err != nil {
		t.Errorf("sweepAt not HH:MM: %v", err)
	}
}
