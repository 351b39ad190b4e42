// Package worker runs the daily jobs: the subscription renewal sweep and
// reminder fan-out, fired at fixed Kyiv wall-clock times.
package worker

import (
	"context"
	"time"

	"finbot/internal/dates"
	"finbot/internal/log"
)

// Runner is the job surface the scheduler drives. Satisfied by
// *services.RenewalService.
type Runner interface {
	Sweep(ctx context.Context) (notified, charged int, err error)
	SendDailyReminders(ctx context.Context) (int, error)
}

// Scheduler fires jobs at minute resolution. Each Kyiv minute is evaluated
// once, so a slow job cannot double-fire its slot.
type Scheduler struct {
	runner      Runner
	log         *log.Logger
	sweepAt     string   // Kyiv HH:MM
	remindersAt []string // Kyiv HH:MM

	now  func() time.Time
	tick time.Duration
}

func NewScheduler(runner Runner, logger *log.Logger, sweepAt string, remindersAt []string) *Scheduler {
	if sweepAt == "" {
		sweepAt = "09:00"
	}
	return &Scheduler{
		runner:      runner,
		log:         logger.WithComponent(log.ComponentWorker),
		sweepAt:     sweepAt,
		remindersAt: remindersAt,
		now:         time.Now,
		tick:        30 * time.Second,
	}
}

// Run blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "Scheduler started",
		log.FieldOperation, log.OpStartup,
		"sweep_at", s.sweepAt,
		"reminders_at", s.remindersAt)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	lastMinute := kyivMinute(s.now())
	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "Scheduler stopped", log.FieldOperation, log.OpShutdown)
			return ctx.Err()
		case <-ticker.C:
			minute := kyivMinute(s.now())
			if minute == lastMinute {
				continue
			}
			lastMinute = minute
			s.fire(ctx, minute)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, minute string) {
	if minute == s.sweepAt {
		notified, charged, err := s.runner.Sweep(ctx)
		if err != nil {
			s.log.ErrorContext(ctx, "Renewal sweep failed",
				log.FieldOperation, log.OpSweep, log.FieldError, err)
		} else {
			s.log.InfoContext(ctx, "Renewal sweep ran",
				log.FieldOperation, log.OpSweep,
				"notified", notified, "charged", charged)
		}
	}
	for _, mark := range s.remindersAt {
		if minute != mark {
			continue
		}
		sent, err := s.runner.SendDailyReminders(ctx)
		if err != nil {
			s.log.ErrorContext(ctx, "Reminder fan-out failed",
				log.FieldOperation, log.OpNotify, log.FieldError, err)
			continue
		}
		s.log.InfoContext(ctx, "Reminders fired",
			log.FieldOperation, log.OpNotify, log.FieldCount, sent)
	}
}

// kyivMinute renders an instant as its Kyiv wall-clock minute (HH:MM).
func kyivMinute(t time.Time) string {
	return t.In(dates.Kyiv()).Format("15:04")
}
