package reminder

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	runHour   = 1
	runMinute = 0
)

type Scheduler struct {
	service *Service
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(svc *Service) *Scheduler {
	return &Scheduler{service: svc}
}

// StartScheduler runs the daily reminder scan for the lifetime of the app.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			s.done = make(chan struct{})
			go s.run(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.cancel()
			select {
			case <-s.done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	zap.L().Info("[Scheduler] started trial reminder scheduler")

	for {
		now := time.Now()
		next := nextRunTime(now, runHour, runMinute)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)

		timer := time.NewTimer(sleepDuration)
		select {
		case <-timer.C:
			s.runDaily(ctx)
		case <-ctx.Done():
			timer.Stop()
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	start := time.Now()
	zap.L().Info("[Scheduler] Running daily trial reminder job")

	n, err := s.service.EnqueueDue(ctx)
	if err != nil {
		zap.L().Error("[Scheduler] failed enqueue trial reminders", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] Finished enqueue trial reminders",
		zap.Int("enqueued", n),
		zap.Duration("duration", time.Since(start)),
	)
}

// nextRunTime returns the next occurrence of hour:minute strictly after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
