package jobs

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"go.uber.org/zap"

	"planahead/internal/observability"
)

type Queue interface {
	Claim(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, errMsg string) error
	RetryLater(ctx context.Context, id uint64, attempts int, runAt time.Time, errMsg string) error
}

type ReminderSource interface {
	LoadReminder(ctx context.Context, planID, userID uint64) (*Reminder, error)
}

type Worker struct {
	ID        string
	Queue     Queue
	Reminders ReminderSource
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Interval  time.Duration

	now func() time.Time
}

func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Logger.Info("worker started", zap.String("worker_id", w.ID))
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("worker stopped", zap.String("worker_id", w.ID))
			return
		case <-ticker.C:
			job, err := w.Queue.Claim(ctx, w.ID)
			if err != nil {
				w.Logger.Warn("worker claim error", zap.String("worker_id", w.ID), zap.Error(err))
				continue
			}
			if job == nil {
				continue
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypePlanReminder:
		w.handleReminder(ctx, job)
	default:
		w.fail(ctx, job, "unknown job type")
	}
}

func (w *Worker) handleReminder(ctx context.Context, job *Job) {
	var p reminderPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.PlanID == 0 {
		w.fail(ctx, job, "bad payload")
		return
	}

	rem, err := w.Reminders.LoadReminder(ctx, p.PlanID, job.UserID)
	if err != nil {
		w.Logger.Warn("reminder read failed", zap.Uint64("job_id", job.ID), zap.Error(err))
		w.retry(ctx, job, "db read error")
		return
	}

	// plan deleted or unscheduled since the job was queued
	if rem == nil || rem.Date == nil {
		w.done(ctx, job)
		return
	}
	// plan moved; a reminder for the new date is queued separately
	if !rem.Date.Equal(job.RunAt) {
		w.Logger.Info("stale plan reminder skipped",
			zap.Uint64("job_id", job.ID),
			zap.Uint64("plan_id", rem.PlanID),
			zap.Time("run_at", job.RunAt),
			zap.Time("date", *rem.Date),
		)
		w.done(ctx, job)
		return
	}

	w.Logger.Info("plan reminder",
		zap.Uint64("user_id", rem.UserID),
		zap.Uint64("plan_id", rem.PlanID),
		zap.String("place", rem.PlaceName),
		zap.Time("date", *rem.Date),
		zap.Strings("tags", rem.Tags),
	)
	if w.Metrics != nil {
		w.Metrics.ReminderSent(ctx)
	}
	w.done(ctx, job)
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		w.fail(ctx, job, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := w.clock().Add(time.Duration(sec) * time.Second)

	if err := w.Queue.RetryLater(ctx, job.ID, attempts, next, errMsg); err != nil {
		w.Logger.Error("retry job", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) done(ctx context.Context, job *Job) {
	if err := w.Queue.MarkDone(ctx, job.ID); err != nil {
		w.Logger.Error("mark job done", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) fail(ctx context.Context, job *Job, errMsg string) {
	if err := w.Queue.MarkFailed(ctx, job.ID, errMsg); err != nil {
		w.Logger.Error("mark job failed", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}
