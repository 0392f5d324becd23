package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/model"
)

// Scheduler submits recurring jobs when their interval comes due.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
	now      func() time.Time
}

// NewScheduler builds a Scheduler that wakes every interval.
func NewScheduler(orch *Orchestrator, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{orch: orch, interval: interval, now: func() time.Time { return time.Now().UTC() }}
}

// Run ticks until ctx is cancelled, submitting every due schedule on each
// tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass. Exported so tests and CLI flows can drive
// the scheduler without the ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	schedules, err := s.orch.store.ListScheduledJobs(ctx)
	if err != nil {
		zap.L().Error("schedule list failed", zap.Error(err))
		return
	}

	now := s.now()
	for _, sched := range schedules {
		if !sched.Enabled || !due(&sched, now) {
			continue
		}
		job := &model.Job{
			Name:           sched.Name + " @ " + now.Format(time.RFC3339),
			Type:           sched.Type,
			SourceSystemID: sched.SourceSystemID,
			CreatedBy:      "scheduler",
		}
		if err := s.orch.Submit(ctx, job); err != nil {
			zap.L().Warn("scheduled submission failed",
				zap.String("schedule", sched.Name),
				zap.Error(err))
			continue
		}
		if err := s.orch.store.SetScheduledJobLastRun(ctx, sched.ID, now); err != nil {
			zap.L().Error("schedule last-run update failed",
				zap.String("schedule", sched.Name),
				zap.Error(err))
		}
	}
}

// due reports whether a schedule should fire at now. A schedule that has
// never run is immediately due.
func due(sched *model.ScheduledJob, now time.Time) bool {
	if sched.LastRunAt == nil {
		return true
	}
	var span time.Duration
	switch sched.Interval {
	case model.ScheduleHourly:
		span = time.Hour
	case model.ScheduleDaily:
		span = 24 * time.Hour
	case model.ScheduleWeekly:
		span = 7 * 24 * time.Hour
	default:
		return false
	}
	return now.Sub(*sched.LastRunAt) >= span
}
